// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワークスペース、ハンドラー、ワーカーから利用する。
type MetricsCollector interface {
	RecordItemMutation(op string)
	RecordImport(source string, accepted, rejected int)
	RecordImportFailure(source string)
	RecordRender(kind string, pages int, duration time.Duration)
	RecordFontFit(steps int, overflow, degraded bool)
	RecordPDF(success bool, duration time.Duration)
	RecordPersistenceFailure(op string)
	RecordHTTPStatus(statusCode int)
	SetActiveWorkspaces(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	itemMutations    *prometheus.CounterVec
	importedRows     *prometheus.CounterVec
	importFailures   *prometheus.CounterVec
	renders          *prometheus.CounterVec
	renderPages      prometheus.Histogram
	renderLatency    *prometheus.HistogramVec
	fontFitSteps     prometheus.Histogram
	fontFitOutcomes  *prometheus.CounterVec
	pdfRequests      *prometheus.CounterVec
	pdfLatency       prometheus.Histogram
	persistenceFail  *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	activeWorkspaces prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		itemMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_item_mutations_total",
			Help: "商品コレクションの状態遷移の合計数",
		}, []string{"op"}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_import_rows_total",
			Help: "インポートされた行数（取り込み・除外別）",
		}, []string{"source", "result"}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_import_failures_total",
			Help: "インポート全体の失敗数",
		}, []string{"source"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_renders_total",
			Help: "値札レンダリングの合計数",
		}, []string{"kind"}),
		renderPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricetag_render_pages",
			Help:    "1回のレンダリングで生成されたページ数",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		renderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricetag_render_latency_seconds",
			Help:    "値札レンダリングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		fontFitSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricetag_fontfit_steps",
			Help:    "フォントサイズ調整の縮小ステップ数",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40},
		}),
		fontFitOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_fontfit_outcomes_total",
			Help: "フォントサイズ調整の結果別の合計数",
		}, []string{"outcome"}),
		pdfRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_pdf_requests_total",
			Help: "PDFレンダラー呼び出しの合計数",
		}, []string{"result"}),
		pdfLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricetag_pdf_latency_seconds",
			Help:    "PDFレンダラーのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		persistenceFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_persistence_failures_total",
			Help: "ワークスペース状態の永続化失敗数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		activeWorkspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricetag_active_workspaces",
			Help: "メモリ上に読み込まれているワークスペース数",
		}),
	}

	reg.MustRegister(
		c.itemMutations,
		c.importedRows,
		c.importFailures,
		c.renders,
		c.renderPages,
		c.renderLatency,
		c.fontFitSteps,
		c.fontFitOutcomes,
		c.pdfRequests,
		c.pdfLatency,
		c.persistenceFail,
		c.httpStatus,
		c.activeWorkspaces,
	)

	return c
}

// RecordItemMutation は商品コレクションの状態遷移を記録する。
func (c *Collector) RecordItemMutation(op string) {
	c.itemMutations.WithLabelValues(op).Inc()
}

// RecordImport はインポート結果の行数を記録する。
func (c *Collector) RecordImport(source string, accepted, rejected int) {
	c.importedRows.WithLabelValues(source, "accepted").Add(float64(accepted))
	c.importedRows.WithLabelValues(source, "rejected").Add(float64(rejected))
}

// RecordImportFailure はインポート全体の失敗を記録する。
func (c *Collector) RecordImportFailure(source string) {
	c.importFailures.WithLabelValues(source).Inc()
}

// RecordRender はレンダリングを記録する。kindは html / pdf / pages。
func (c *Collector) RecordRender(kind string, pages int, duration time.Duration) {
	c.renders.WithLabelValues(kind).Inc()
	c.renderPages.Observe(float64(pages))
	c.renderLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFontFit はフォントサイズ調整1サイクルの結果を記録する。
func (c *Collector) RecordFontFit(steps int, overflow, degraded bool) {
	outcome := "fit"
	switch {
	case degraded:
		outcome = "degraded"
	case overflow:
		outcome = "overflow"
	}
	c.fontFitOutcomes.WithLabelValues(outcome).Inc()
	c.fontFitSteps.Observe(float64(steps))
}

// RecordPDF はPDFレンダラー呼び出しを記録する。
func (c *Collector) RecordPDF(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.pdfRequests.WithLabelValues(result).Inc()
	c.pdfLatency.Observe(duration.Seconds())
}

// RecordPersistenceFailure は永続化の失敗を記録する。
func (c *Collector) RecordPersistenceFailure(op string) {
	c.persistenceFail.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveWorkspaces は読み込み済みワークスペース数を設定する。
func (c *Collector) SetActiveWorkspaces(n int) {
	c.activeWorkspaces.Set(float64(n))
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordItemMutation(string) {}
func (NopCollector) RecordImport(string, int, int) {}
func (NopCollector) RecordImportFailure(string) {}
func (NopCollector) RecordRender(string, int, time.Duration) {}
func (NopCollector) RecordFontFit(int, bool, bool) {}
func (NopCollector) RecordPDF(bool, time.Duration) {}
func (NopCollector) RecordPersistenceFailure(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) SetActiveWorkspaces(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
