package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/modules/relay"
)

// Attach routes connections on the default namespace into svc. Connections
// that carry no token in the handshake get authTimeout to send one.
func (h *Hub) Attach(svc *relay.Service, authTimeout time.Duration) {
	ns := h.sio.Of(namespaceDefault, nil)
	_ = ns.On("connection", func(args ...any) {
		if len(args) == 0 {
			return
		}
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}

		conn := newConn(client)
		h.register(conn.ID())
		sess := svc.Open(conn)

		_ = client.On(relay.EventAuthenticate, func(eventArgs ...any) {
			sess.Authenticate(normalizeToken(fieldFromArgs("token", eventArgs...)))
		})
		_ = client.On(relay.EventSendMessage, func(eventArgs ...any) {
			sess.SendMessage(fieldFromArgs("content", eventArgs...))
		})
		_ = client.On("disconnect", func(_ ...any) {
			sess.Close()
			h.unregister(conn.ID())
		})

		if token := extractToken(client); token != "" {
			sess.Authenticate(token)
			return
		}
		h.logger.Debug("no handshake token, waiting for authenticate", zap.String("conn_id", conn.ID()))
		sess.AwaitToken(authTimeout)
	})
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	return tokenFromHandshake(any(handshake.Auth), handshake.Headers, handshake.Query)
}

// tokenFromHandshake looks in the auth payload, the token cookie, the token
// query parameter and the Authorization header, in that order.
func tokenFromHandshake(auth any, headers, query map[string][]string) string {
	if m, ok := auth.(map[string]any); ok {
		if token := normalizeToken(strFromAny(m["token"])); token != "" {
			return token
		}
	}
	if cookies := valuesFromMultiMap(headers, "cookie"); len(cookies) > 0 {
		req := &http.Request{Header: http.Header{"Cookie": cookies}}
		if c, err := req.Cookie("token"); err == nil {
			if token := normalizeToken(c.Value); token != "" {
				return token
			}
		}
	}
	if token := normalizeToken(firstValueFromMultiMap(query, "token")); token != "" {
		return token
	}
	return normalizeToken(firstValueFromMultiMap(headers, "authorization"))
}

func valuesFromMultiMap(values map[string][]string, key string) []string {
	for k, list := range values {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return list
		}
	}
	return nil
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	for _, v := range valuesFromMultiMap(values, key) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// fieldFromArgs reads key from the first event argument. Clients send either
// an object ({"token": "..."}) or the bare string.
func fieldFromArgs(key string, args ...any) string {
	if len(args) == 0 || args[0] == nil {
		return ""
	}
	switch raw := args[0].(type) {
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return strFromAny(obj[key])
		}
		return raw
	case map[string]any:
		return strFromAny(raw[key])
	case []byte:
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		return strFromAny(obj[key])
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return ""
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return ""
		}
		return strFromAny(obj[key])
	}
}

func strFromAny(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
