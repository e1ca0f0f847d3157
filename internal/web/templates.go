package web

import (
	"html/template"
	"sync"
)

var dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>minerscan</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        :root {
            --bg-primary: #0a0f0a;
            --bg-card: rgba(0, 40, 0, 0.4);
            --border-color: #1a4a1a;
            --text-primary: #00ff41;
            --text-dim: #336633;
            --danger: #ff3333;
        }
        body { background: var(--bg-primary); color: var(--text-primary); font-family: monospace; padding: 1.5rem; }
        h1 { margin-bottom: 1rem; }
        .cards { display: flex; gap: 1rem; flex-wrap: wrap; margin-bottom: 1rem; }
        .card { background: var(--bg-card); border: 1px solid var(--border-color); padding: 0.75rem 1rem; min-width: 160px; }
        .label { color: var(--text-dim); font-size: 0.8rem; }
        .value { font-size: 1.4rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 0.3rem 0.5rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-dim); }
        .hot { color: var(--danger); }
        progress { width: 300px; }
        button { background: none; color: var(--text-primary); border: 1px solid var(--border-color); padding: 0.2rem 0.5rem; cursor: pointer; }
    </style>
</head>
<body>
    <h1>⛏ minerscan</h1>

    <div class="cards">
        <div class="card"><div class="label">Miners</div><div class="value">{{.stats.Count}} ({{.stats.Mining}} mining)</div></div>
        <div class="card"><div class="label">Total hashrate</div><div class="value">{{printf "%.2f" .stats.TotalHashrate}} TH/s</div></div>
        <div class="card"><div class="label">Average hashrate</div><div class="value">{{printf "%.2f" .stats.AvgHashrate}} TH/s</div></div>
        <div class="card"><div class="label">Efficiency</div><div class="value">{{printf "%.1f" .stats.AvgEfficiency}} W/TH</div></div>
        <div class="card"><div class="label">Temperature</div><div class="value">{{printf "%.1f" .stats.AvgTemperature}} °C</div></div>
    </div>

    <div class="cards">
        <div class="card">
            <div class="label">Scan</div>
            {{if .progress.Scanning}}
                <progress max="{{.progress.TotalAddresses}}" value="{{.progress.ScannedAddresses}}"></progress>
                {{.progress.ScannedAddresses}}/{{.progress.TotalAddresses}} · found {{.progress.Found}} · {{.progress.CurrentAddress}}
            {{else}}
                idle · <button onclick="scan()">scan saved ranges ({{len .ranges}})</button>
            {{end}}
        </div>
        <div class="card"><div class="label">Downloads</div><a href="/api/export">CSV</a> · <a href="/report">report</a></div>
    </div>

    <table>
        <tr>
            <th>Address</th><th>Model</th><th>TH/s</th><th>Power</th><th>W/TH</th>
            <th>Temp</th><th>Fan</th><th>Worker</th><th></th>
        </tr>
        {{range .miners}}
        <tr>
            <td>{{.Address}}</td>
            <td>{{.Display.Model}}</td>
            <td>{{.Display.Hashrate}}</td>
            <td>{{.Display.Wattage}}</td>
            <td>{{.Display.Efficiency}}</td>
            <td>{{.Display.Temperature}}</td>
            <td>{{.Display.FanSpeed}}</td>
            <td>{{.Display.Worker}}</td>
            <td>
                <button onclick="act('{{.Address}}','resume')">resume</button>
                <button onclick="act('{{.Address}}','pause')">pause</button>
                <button onclick="act('{{.Address}}','identify')">identify</button>
            </td>
        </tr>
        {{else}}
        <tr><td colspan="9" class="label">No miners discovered yet</td></tr>
        {{end}}
    </table>

    <script>
        function scan() {
            fetch('/api/scan', { method: 'POST' }).then(() => setTimeout(() => location.reload(), 500));
        }
        function act(ip, action) {
            fetch('/api/miners/' + ip + '/' + action, { method: 'POST' })
                .then(r => r.json())
                .then(j => { if (j.error) alert(j.error); });
        }
        setTimeout(() => location.reload(), 5000);
    </script>
</body>
</html>`

var (
	dashboardOnce sync.Once
	dashboardTmpl *template.Template
)

func getDashboardTemplate() *template.Template {
	dashboardOnce.Do(func() {
		dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))
	})
	return dashboardTmpl
}
