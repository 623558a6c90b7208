package conditional

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// bufferedWriter holds a handler's response instead of sending it, so the
// middleware can rewrite or replace the body before anything reaches the
// client. Headers still go straight to the underlying writer's map.
type bufferedWriter struct {
	http.ResponseWriter
	res    *echo.Response
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) written() bool {
	return w.status != 0
}

// capture swaps c's writer for a buffer and returns it along with a function
// restoring the original writer.
func capture(c echo.Context) (*bufferedWriter, func()) {
	res := c.Response()
	original := res.Writer
	bw := &bufferedWriter{ResponseWriter: original, res: res}
	res.Writer = bw
	return bw, func() { res.Writer = original }
}

// send writes status and body to the real writer and records them on the echo
// response, which the handler left holding its own status and size.
func (w *bufferedWriter) send(status int, body []byte) error {
	w.res.Status = status
	w.res.Size = 0
	w.res.Committed = true
	h := w.ResponseWriter.Header()
	if len(body) > 0 {
		h.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
	} else {
		h.Del(echo.HeaderContentLength)
		h.Del(echo.HeaderContentType)
	}
	w.ResponseWriter.WriteHeader(status)
	if len(body) == 0 {
		return nil
	}
	n, err := w.ResponseWriter.Write(body)
	w.res.Size = int64(n)
	return err
}

// flush sends whatever the handler produced unchanged.
func (w *bufferedWriter) flush() error {
	if !w.written() {
		return nil
	}
	return w.send(w.status, w.body.Bytes())
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
