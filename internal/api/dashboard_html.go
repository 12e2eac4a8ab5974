package api

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>orientgo driver status</title>
<style>
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
:root{
  --bg:#0f1117;--bg-card:#161b22;--border:#30363d;--text:#e1e4e8;--text-muted:#8b949e;
  --primary:#58a6ff;--green:#3fb950;--red:#f85149;--yellow:#d29922;
}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif;background:var(--bg);color:var(--text);line-height:1.5;min-height:100vh}
a{color:var(--primary);text-decoration:none}
.container{max-width:1100px;margin:0 auto;padding:24px}
header{display:flex;align-items:center;gap:16px;margin-bottom:24px}
h1{font-size:20px;font-weight:700}
.badge{display:inline-flex;align-items:center;gap:4px;padding:2px 10px;border-radius:12px;font-size:12px;font-weight:600;border:1px solid var(--border)}
.badge-healthy{color:var(--green);border-color:var(--green)}
.badge-unhealthy{color:var(--red);border-color:var(--red)}
.badge-unknown{color:var(--text-muted);border-color:var(--border)}
table{width:100%;border-collapse:collapse;background:var(--bg-card);border:1px solid var(--border);border-radius:8px;overflow:hidden}
th,td{padding:10px 14px;text-align:left;border-bottom:1px solid var(--border);font-size:14px}
th{color:var(--text-muted);font-weight:600;font-size:12px;text-transform:uppercase}
tr:last-child td{border-bottom:none}
.stat{color:var(--text-muted);font-variant-numeric:tabular-nums}
.empty{padding:24px;text-align:center;color:var(--text-muted)}
.refresh{font-size:12px;color:var(--text-muted);margin-left:auto}
</style>
</head>
<body>
<div class="container">
<header>
  <h1>orientgo driver — cluster status</h1>
  <span class="refresh" id="lastRefresh"></span>
</header>
<table>
  <thead>
    <tr><th>Server</th><th>Status</th><th>Failures</th><th>Active</th><th>Idle</th><th>Waiting</th><th>Exhausted</th></tr>
  </thead>
  <tbody id="rows"></tbody>
</table>
<div class="empty" id="empty" style="display:none">No servers configured</div>
</div>
<script>
(function() {
  function esc(s) { return String(s == null ? '' : s).replace(/[&<>"']/g, function(c) {
    return {'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c];
  }); }

  function badge(status) {
    var name = status === 1 ? 'healthy' : status === 2 ? 'unhealthy' : 'unknown';
    return '<span class="badge badge-' + name + '">' + esc(name) + '</span>';
  }

  function render(servers) {
    var rows = document.getElementById('rows');
    var empty = document.getElementById('empty');
    if (!servers.length) {
      rows.innerHTML = '';
      empty.style.display = 'block';
      return;
    }
    empty.style.display = 'none';
    rows.innerHTML = servers.map(function(s) {
      var h = s.health || {};
      var st = s.pool_stats || {};
      return '<tr>' +
        '<td>' + esc(s.address) + '</td>' +
        '<td>' + badge(h.status) + '</td>' +
        '<td class="stat">' + (h.consecutive_failures || 0) + '</td>' +
        '<td class="stat">' + (st.Active || 0) + '</td>' +
        '<td class="stat">' + (st.Idle || 0) + '</td>' +
        '<td class="stat">' + (st.Waiting || 0) + '</td>' +
        '<td class="stat">' + (st.Exhausted || 0) + '</td>' +
        '</tr>';
    }).join('');
  }

  function refresh() {
    fetch('/servers').then(function(r) { return r.json(); }).then(function(data) {
      render(data || []);
      document.getElementById('lastRefresh').textContent = 'updated ' + new Date().toLocaleTimeString();
    }).catch(function() {
      document.getElementById('lastRefresh').textContent = 'refresh failed';
    });
  }

  refresh();
  setInterval(refresh, 5000);
})();
</script>
</body>
</html>
`
