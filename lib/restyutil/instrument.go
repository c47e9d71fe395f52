package restyutil

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// DumpExchanges writes every completed exchange of client to output, prefixed
// with a sequence number so the files sort in request order.
func DumpExchanges(client *resty.Client, prefix string, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf("%s-%04d", prefix, atomic.AddUint64(&idcounter, 1))
		output.Write(id, FormatHttpMessage(res))
		slog.Debug(
			"dumped http exchange",
			"id", id,
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
		)
		return nil
	})
}
