package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

const gotdSessionVersion = 1

type storedSession struct {
	Version int          `json:"Version"`
	Data    session.Data `json:"Data"`
}

// NormalizeSession converts a decrypted account secret into the JSON layout
// read by gotd session storage. Both gotd JSON and Telethon string sessions
// are accepted.
func NormalizeSession(secret []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(secret)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty session", apperrors.ErrUnsupportedSessionFormat)
	}

	var stored storedSession
	if err := json.Unmarshal(trimmed, &stored); err == nil && stored.Version != 0 {
		return append([]byte(nil), trimmed...), nil
	}

	data, err := fromTelethon(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnsupportedSessionFormat, err)
	}

	buf, err := json.Marshal(storedSession{Version: gotdSessionVersion, Data: *data})
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	return buf, nil
}

func fromTelethon(s string) (*session.Data, error) {
	s = strings.Trim(s, "\"'")

	data, err := session.TelethonSession(s)
	if err != nil {
		return nil, err
	}

	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}

	if len(data.Config.DCOptions) == 0 && data.Addr != "" {
		if opt, ok := dcOption(data.DC, data.Addr); ok {
			data.Config.DCOptions = []tg.DCOption{opt}
		}
	}

	return data, nil
}

func dcOption(dc int, addr string) (tg.DCOption, bool) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return tg.DCOption{}, false
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return tg.DCOption{}, false
	}

	return tg.DCOption{ID: dc, IPAddress: host, Port: port}, true
}
