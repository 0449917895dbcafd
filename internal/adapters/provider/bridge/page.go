package bridge

import (
	"net/http"
)

// pageHTML forwards bridge requests to window.ethereum and pushes its
// chainChanged events back over the socket.
const pageHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>ew wallet bridge</title></head>
<body>
<p id="status">connecting...</p>
<script>
(() => {
  const status = document.getElementById("status");
  const scheme = location.protocol === "https:" ? "wss://" : "ws://";
  const ws = new WebSocket(scheme + location.host + "` + SocketPath + `");
  const send = (msg) => ws.send(JSON.stringify(msg));

  ws.onopen = () => {
    status.textContent = window.ethereum ? "bridge connected" : "bridge connected, no wallet detected";
    if (window.ethereum && window.ethereum.on) {
      window.ethereum.on("chainChanged", (chainId) => send({event: "chainChanged", data: chainId}));
    }
  };
  ws.onclose = () => { status.textContent = "bridge closed"; };
  ws.onmessage = async (event) => {
    const req = JSON.parse(event.data);
    if (!window.ethereum) {
      send({id: req.id, error: {code: 4900, message: "no wallet extension detected"}});
      return;
    }
    try {
      const result = await window.ethereum.request({method: req.method, params: req.params});
      send({id: req.id, result: result === undefined ? null : result});
    } catch (err) {
      send({id: req.id, error: {code: err.code || -32603, message: err.message || String(err)}});
    }
  };
})();
</script>
</body>
</html>
`

// PageHandler serves the browser half of the bridge.
func PageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(pageHTML))
	})
}
