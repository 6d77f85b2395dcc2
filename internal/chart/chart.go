// Package chart renders a member's monthly volunteer hours as a QuickChart
// line chart and returns a short URL suitable for a Slack image block.
package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

const (
	defaultCreateURL = "https://quickchart.io/chart/create"
	cutoffMonths     = 6
)

// The system went live in September 2025, there's no data before that.
var absoluteCutoff = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

// chartConfig is the Chart.js v2 config with the series spliced in. It uses a
// JS gradient helper, so it has to travel as a string rather than JSON.
const chartConfig = `{
  type: 'line',
  data: {
    labels: {labels},
    datasets: [{
      data: {data},
      fill: true,
      borderColor: getGradientFillHelper('vertical', ['#eb3639', '#a336eb', '#36a2eb']),
      borderWidth: 5,
      pointRadius: 5,
      backgroundColor: 'rgba(255, 255, 255, 0.1)',
    }]
  },
  options: {
    layout: { padding: { top: 50, right: 20, left: 20 } },
    legend: { display: false },
    scales: {
      xAxes: [{ display: true, gridLines: { display: false }, ticks: { fontColor: '#fff' } }],
      yAxes: [{ display: false, gridLines: { display: false }, ticks: { beginAtZero: true } }]
    },
    plugins: {
      datalabels: {
        align: 'top',
        anchor: 'end',
        color: '#fff',
        font: { weight: 'bold', size: 12 },
        formatter: function(value) { return value + 'h'; }
      }
    }
  },
  plugins: ["chartjs-plugin-datalabels"]
}`

// HTTPClient represents the functionality we need from an *http.Client, or
// similar.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

type Generator struct {
	c         HTTPClient
	createURL string
}

func NewGenerator(c HTTPClient) (*Generator, error) {
	if c == nil {
		return nil, errors.New("must provide an http client")
	}
	return &Generator{c: c, createURL: defaultCreateURL}, nil
}

// buildSeries collects up to cutoffMonths of month labels and totals, oldest
// first, stopping at the system epoch.
func buildSeries(months map[string]float64, now time.Time) ([]string, []float64) {
	var labels []string
	var data []float64

	processing := now
	for i := 0; i < cutoffMonths; i++ {
		labels = append(labels, processing.Format("Jan"))
		data = append(data, months[internal.MonthOf(processing)])

		processing = internal.PreviousMonth(processing)
		if processing.Before(absoluteCutoff) {
			break
		}
	}

	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
		data[i], data[j] = data[j], data[i]
	}
	return labels, data
}

type createRequest struct {
	Chart           string `json:"chart"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Version         string `json:"version"`
	BackgroundColor string `json:"backgroundColor"`
}

type createResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// MonthlyHoursURL returns a short chart URL for the member's recent months.
func (g *Generator) MonthlyHoursURL(ctx context.Context, months map[string]float64, now time.Time) (string, error) {
	labels, data := buildSeries(months, now)

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode labels")
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode data")
	}

	conf := strings.Replace(chartConfig, "{labels}", string(labelsJSON), 1)
	conf = strings.Replace(conf, "{data}", string(dataJSON), 1)

	body, err := json.Marshal(createRequest{
		Chart:           conf,
		Width:           500,
		Height:          300,
		Version:         "2",
		BackgroundColor: "rgba(26, 29, 33, 1)", // match Slack dark mode
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode chart request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.createURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build chart request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.c.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to create chart")
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("chart create unexpected status: %s", resp.Status)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.Wrap(err, "failed to decode chart response")
	}
	if !created.Success || created.URL == "" {
		return "", errors.New("chart service reported failure")
	}
	return created.URL, nil
}
