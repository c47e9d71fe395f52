package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"recorder-scraper/lib/batch"
	"recorder-scraper/lib/scrapers/recorder"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testResults = []batch.Result{
	{
		Job: batch.Job{Name: "navajo/2024-01"},
		Summary: recorder.Summary{
			RecordsExtracted: 3,
			RecordsForwarded: 2,
			PagesDownloaded:  5,
			Reports:          []error{&recorder.ParseFailureError{Raw: "N/A"}},
		},
		Elapsed: 1500 * time.Millisecond,
	},
	{
		Job: batch.Job{Name: "maricopa"},
		Err: errors.New("workflow aborted at select-sub-jurisdiction"),
	},
}

func TestNewRunID(t *testing.T) {
	a, err := NewRunID()
	require.NoError(t, err)
	b, err := NewRunID()
	require.NoError(t, err)
	require.Len(t, a, 8)
	require.NotEqual(t, a, b)
}

func TestSummaryTable(t *testing.T) {
	rendered := SummaryTable(testResults).Render()
	require.Contains(t, rendered, "navajo/2024-01")
	require.Contains(t, rendered, "partial (1 reports)")
	require.Contains(t, rendered, "failed: workflow aborted")
	// go-pretty upper-cases header and footer cells
	require.Contains(t, rendered, "PAGES FAILED")
	require.Contains(t, rendered, "TOTAL")
	require.Contains(t, rendered, "1 FAILED")

	require.Equal(t, "[recorder abc] 2 jobs, 1 failed, 2 records, 5 pages", Subject("abc", testResults))
}

func TestConfigEnabled(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.False(t, Config{Smtp: SmtpConfig{Server: "localhost"}}.Enabled())
	require.True(t, Config{Smtp: SmtpConfig{Server: "localhost"}, To: []string{"a@b.c"}}.Enabled())
}

func TestSendSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtpServer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp", "1080/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Skip("docker is unavailable:", err)
	}
	defer func() {
		err := smtpServer.Terminate(ctx)
		if err != nil {
			t.Fatal(err)
		}
	}()

	host, err := smtpServer.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := smtpServer.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := smtpServer.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	err = SendSummary(ctx, Config{
		Smtp: SmtpConfig{
			Server:       host,
			Port:         smtpPort.Int(),
			EmailAddress: "alice@email.com",
			Password:     "default",
		},
		To: []string{"bob@email.com"},
	}, "run12345", testResults)
	require.NoError(t, err)

	res, err := resty.New().R().
		Get(fmt.Sprintf("http://%s:%s/messages/1.plain", host, webPort.Port()))
	require.NoError(t, err)
	body := res.String()
	require.True(t, strings.Contains(body, "Run run12345 finished."), body)
	require.Contains(t, body, "navajo/2024-01")
}
