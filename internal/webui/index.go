package webui

const indexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>sqlpal</title>
  <style>
    body { font-family: "Segoe UI", sans-serif; margin: 0; background: linear-gradient(145deg,#f7fafc,#e9eef7); color: #1f2937; }
    .wrap { max-width: 900px; margin: 0 auto; padding: 20px; }
    .panel { background: #fff; border-radius: 12px; box-shadow: 0 8px 30px rgba(15,23,42,.08); padding: 16px; }
    #log { min-height: 320px; max-height: 60vh; overflow: auto; border: 1px solid #d1d5db; border-radius: 8px; padding: 12px; background: #f9fafb; }
    .msg { margin-bottom: 14px; }
    .msg .who { font-weight: 600; margin-bottom: 4px; }
    .msg pre { background: #eef2f7; border-radius: 6px; padding: 8px; white-space: pre-wrap; margin: 4px 0; }
    .row { display: flex; gap: 8px; margin-top: 10px; }
    input { flex: 1; padding: 10px; border: 1px solid #cbd5e1; border-radius: 8px; }
    button { padding: 10px 16px; border: 0; border-radius: 8px; background: #0f766e; color: #fff; cursor: pointer; }
    button:hover { background: #0d9488; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="panel">
      <h2>sqlpal</h2>
      <p>Ask questions in natural language. They are translated to SQL, executed, and summarized.</p>
      <div id="log"></div>
      <div class="row">
        <input id="msg" placeholder="e.g. how many orders were placed last month?" />
        <button id="send">Send</button>
      </div>
    </div>
  </div>
  <script>
    const log = document.getElementById('log');
    const msg = document.getElementById('msg');
    const send = document.getElementById('send');
    const sessionId = 'web-' + Date.now();

    const append = (who, html) => {
      const div = document.createElement('div');
      div.className = 'msg';
      div.innerHTML = '<div class="who">' + who + '</div>' + html;
      log.appendChild(div);
      log.scrollTop = log.scrollHeight;
    };
    const esc = (s) => (s || '').replace(/[&<>]/g, (c) => ({'&':'&amp;','<':'&lt;','>':'&gt;'}[c]));

    async function sendMessage() {
      const text = msg.value.trim();
      if (!text) return;
      append('You', '<pre>' + esc(text) + '</pre>');
      msg.value = '';
      const resp = await fetch('/api/chat', {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: JSON.stringify({ session_id: sessionId, text })
      });
      const data = await resp.json();
      if (data.error) {
        append('sqlpal', '<pre>' + esc(data.text || data.error) + '</pre>');
        return;
      }
      append('sqlpal',
        '<div>SQL</div><pre>' + esc(data.sql) + '</pre>' +
        '<div>Results</div><pre>' + esc(data.result) + '</pre>' +
        '<div>Summary</div><pre>' + esc(data.summary) + '</pre>');
    }
    send.addEventListener('click', sendMessage);
    msg.addEventListener('keydown', (e) => { if (e.key === 'Enter') sendMessage(); });
  </script>
</body>
</html>`
