// Package anomaly flags providers whose recent behavior deviates sharply
// from their own baseline, as an advisory signal next to the rule engine's
// hard thresholds.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
	"provider-mesh/pkg/clock"
)

// Detector defaults.
const (
	DefaultBaselineWindow = 24 * time.Hour
	DefaultRecentWindow   = 15 * time.Minute
	DefaultMinSamples     = 20

	// zScoreThreshold is the deviation, in standard deviations, at which a
	// recent observation counts as anomalous.
	zScoreThreshold = 3.0
)

// Kind names what deviated.
type Kind string

const (
	KindLatency   Kind = "latency"
	KindErrorRate Kind = "error_rate"
)

// Anomaly is one detected deviation.
type Anomaly struct {
	Provider    string             `json:"provider"`
	ServiceType entity.ServiceType `json:"service_type"`
	Kind        Kind               `json:"kind"`
	Baseline    float64            `json:"baseline"`
	Observed    float64            `json:"observed"`
	ZScore      float64            `json:"z_score"`
	DetectedAt  time.Time          `json:"detected_at"`
}

// Detector compares each provider's recent window against its own trailing
// baseline using a z-score test.
type Detector struct {
	Metrics  repository.ProviderMetricsRepository
	Requests repository.RequestLogRepository
	Clock    clock.Clock
	Logger   *slog.Logger

	BaselineWindow time.Duration
	RecentWindow   time.Duration
	MinSamples     int
}

// NewDetector wires a Detector with its stores.
func NewDetector(metricsRepo repository.ProviderMetricsRepository, requests repository.RequestLogRepository, clk clock.Clock, logger *slog.Logger) *Detector {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		Metrics:        metricsRepo,
		Requests:       requests,
		Clock:          clk,
		Logger:         logger,
		BaselineWindow: DefaultBaselineWindow,
		RecentWindow:   DefaultRecentWindow,
		MinSamples:     DefaultMinSamples,
	}
}

// Detect scans every provider and returns the deviations found.
func (d *Detector) Detect(ctx context.Context) ([]Anomaly, error) {
	providers, err := d.Metrics.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	var out []Anomaly
	for _, m := range providers {
		found, err := d.detectProvider(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (d *Detector) detectProvider(ctx context.Context, m *entity.ProviderMetrics) ([]Anomaly, error) {
	now := d.Clock.Now()
	recs, err := d.Requests.ListSince(ctx, m.Provider, m.ServiceType, now.Add(-d.BaselineWindow))
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	recentCut := now.Add(-d.RecentWindow)
	var baseLat, recentLat []float64
	var baseFailures, recentFailures, baseTotal, recentTotal int
	for _, r := range recs {
		lat := float64(r.LatencyMs)
		if r.CreatedAt.Before(recentCut) {
			baseLat = append(baseLat, lat)
			baseTotal++
			if r.Status == entity.RequestFailed {
				baseFailures++
			}
		} else {
			recentLat = append(recentLat, lat)
			recentTotal++
			if r.Status == entity.RequestFailed {
				recentFailures++
			}
		}
	}
	if baseTotal < d.MinSamples || recentTotal == 0 {
		return nil, nil
	}

	var out []Anomaly

	baseMean, baseStd := meanStd(baseLat)
	recentMean, _ := meanStd(recentLat)
	if baseStd > 0 {
		z := (recentMean - baseMean) / baseStd
		if z >= zScoreThreshold {
			out = append(out, Anomaly{
				Provider:    m.Provider,
				ServiceType: m.ServiceType,
				Kind:        KindLatency,
				Baseline:    baseMean,
				Observed:    recentMean,
				ZScore:      z,
				DetectedAt:  now,
			})
		}
	}

	baseRate := float64(baseFailures) / float64(baseTotal)
	recentRate := float64(recentFailures) / float64(recentTotal)
	// binomial stddev of the recent sample under the baseline rate
	std := math.Sqrt(baseRate * (1 - baseRate) / float64(recentTotal))
	if std > 0 {
		z := (recentRate - baseRate) / std
		if z >= zScoreThreshold {
			out = append(out, Anomaly{
				Provider:    m.Provider,
				ServiceType: m.ServiceType,
				Kind:        KindErrorRate,
				Baseline:    baseRate,
				Observed:    recentRate,
				ZScore:      z,
				DetectedAt:  now,
			})
		}
	}

	for _, a := range out {
		d.Logger.Warn("behavioral anomaly detected",
			slog.String("provider", a.Provider),
			slog.String("kind", string(a.Kind)),
			slog.Float64("baseline", a.Baseline),
			slog.Float64("observed", a.Observed),
			slog.Float64("z_score", a.ZScore))
	}
	return out, nil
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var varSum float64
	for _, x := range xs {
		varSum += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(varSum / float64(len(xs)))
}
