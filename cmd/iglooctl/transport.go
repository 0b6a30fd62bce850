package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"igloo/client"
	"igloo/wire"
)

// hubConn is iglooctl's connection to a running hub: an authenticated
// cookie jar plus the UI WebSocket, reusing the same ClientMessage/
// ServerMessage wire shapes client.Manager speaks to a browser dashboard.
type hubConn struct {
	ws *websocket.Conn
}

func dialHub(addr, username, password string) (*hubConn, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	loginBody, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	loginURL := (&url.URL{Scheme: "http", Host: addr, Path: "/api/login"}).String()
	resp, err := httpClient.Post(loginURL, "application/json", bytes.NewReader(loginBody))
	if err != nil {
		return nil, errors.Wrap(err, "iglooctl: logging in")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("iglooctl: login failed with status %d", resp.StatusCode)
	}

	wsURL := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	header := http.Header{}
	for _, c := range jar.Cookies(&url.URL{Scheme: "http", Host: addr}) {
		header.Add("Cookie", c.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), header)
	if err != nil {
		return nil, errors.Wrap(err, "iglooctl: dialing websocket")
	}
	return &hubConn{ws: conn}, nil
}

func (h *hubConn) Close() error {
	return h.ws.Close()
}

func (h *hubConn) send(msg client.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	framed, err := wire.EncodeUIFrame(payload)
	if err != nil {
		return err
	}
	return h.ws.WriteMessage(websocket.BinaryMessage, framed)
}

func (h *hubConn) recv() (client.ServerMessage, error) {
	var msg client.ServerMessage
	kind, raw, err := h.ws.ReadMessage()
	if err != nil {
		return msg, err
	}
	if kind != websocket.BinaryMessage {
		return msg, errors.New("iglooctl: unexpected non-binary websocket frame")
	}
	payload, err := wire.DecodeUIFrame(raw)
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(payload, &msg)
	return msg, err
}
