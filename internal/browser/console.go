package browser

import (
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

type consoleMirror struct {
	url  string
	emit ConsoleFunc
}

func newConsoleMirror(url string, emit ConsoleFunc) *consoleMirror {
	return &consoleMirror{url: url, emit: emit}
}

func (m *consoleMirror) called(e *runtime.EventConsoleAPICalled) {
	if m.emit == nil || e == nil {
		return
	}
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if text := remoteText(arg); text != "" {
			parts = append(parts, text)
		}
	}
	m.send(string(e.Type), strings.Join(parts, " "), e.Timestamp)
}

func (m *consoleMirror) thrown(e *runtime.EventExceptionThrown) {
	if m.emit == nil || e == nil || e.ExceptionDetails == nil {
		return
	}
	d := e.ExceptionDetails
	text := d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		text = d.Exception.Description
	}
	m.send("exception", text, e.Timestamp)
}

// send never lets a panicking callback escape into the event loop.
func (m *consoleMirror) send(level, text string, ts *runtime.Timestamp) {
	defer func() { _ = recover() }()
	msg := crawler.ConsoleMessage{URL: m.url, Level: level, Text: text, TS: time.Now().UTC()}
	if ts != nil {
		msg.TS = time.Time(*ts).UTC()
	}
	m.emit(msg)
}

func remoteText(obj *runtime.RemoteObject) string {
	if obj == nil {
		return ""
	}
	if len(obj.Value) > 0 {
		v := string(obj.Value)
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			return strings.Trim(v, `"`)
		}
		return v
	}
	if obj.UnserializableValue != "" {
		return string(obj.UnserializableValue)
	}
	return obj.Description
}
