package routing

import (
	"context"
	"testing"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/pkg/clock"
)

type stubMetricsRepo struct {
	rows []*entity.ProviderMetrics
	err  error
}

func (r *stubMetricsRepo) Get(_ context.Context, provider string, serviceType entity.ServiceType) (*entity.ProviderMetrics, error) {
	for _, m := range r.rows {
		if m.Provider == provider && m.ServiceType == serviceType {
			return m, nil
		}
	}
	return nil, r.err
}

func (r *stubMetricsRepo) ListByService(_ context.Context, serviceType entity.ServiceType) ([]*entity.ProviderMetrics, error) {
	var out []*entity.ProviderMetrics
	for _, m := range r.rows {
		if m.ServiceType == serviceType {
			out = append(out, m)
		}
	}
	return out, r.err
}

func (r *stubMetricsRepo) ListAll(_ context.Context) ([]*entity.ProviderMetrics, error) {
	return r.rows, r.err
}

func (r *stubMetricsRepo) Create(_ context.Context, m *entity.ProviderMetrics) error {
	r.rows = append(r.rows, m)
	return r.err
}

func (r *stubMetricsRepo) UpdateAtomic(_ context.Context, provider string, serviceType entity.ServiceType, mutate func(*entity.ProviderMetrics) error) (*entity.ProviderMetrics, error) {
	for _, m := range r.rows {
		if m.Provider == provider && m.ServiceType == serviceType {
			if err := mutate(m); err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return nil, entity.ErrNotFound
}

type stubQualityRepo struct {
	rows map[string]*entity.QualityScore
}

func (r *stubQualityRepo) Get(_ context.Context, provider string, serviceType entity.ServiceType) (*entity.QualityScore, error) {
	return r.rows[provider+"/"+string(serviceType)], nil
}

func (r *stubQualityRepo) ListByService(_ context.Context, serviceType entity.ServiceType) ([]*entity.QualityScore, error) {
	var out []*entity.QualityScore
	for _, q := range r.rows {
		if q.ServiceType == serviceType {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *stubQualityRepo) Upsert(_ context.Context, q *entity.QualityScore) error {
	if r.rows == nil {
		r.rows = map[string]*entity.QualityScore{}
	}
	r.rows[q.Provider+"/"+string(q.ServiceType)] = q
	return nil
}

type stubTierRepo struct {
	configs map[entity.QualityTier]*entity.QualityTierConfig
}

func (r *stubTierRepo) Get(_ context.Context, tier entity.QualityTier) (*entity.QualityTierConfig, error) {
	return r.configs[tier], nil
}

func (r *stubTierRepo) Upsert(_ context.Context, c *entity.QualityTierConfig) error {
	if r.configs == nil {
		r.configs = map[entity.QualityTier]*entity.QualityTierConfig{}
	}
	r.configs[c.TierName] = c
	return nil
}

type stubChainRepo struct {
	chains []*entity.FallbackChain
}

func (r *stubChainRepo) ListByService(_ context.Context, serviceType entity.ServiceType) ([]*entity.FallbackChain, error) {
	var out []*entity.FallbackChain
	for _, c := range r.chains {
		if c.ServiceType == serviceType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubChainRepo) GetByID(_ context.Context, id int64) (*entity.FallbackChain, error) {
	for _, c := range r.chains {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *stubChainRepo) Create(_ context.Context, c *entity.FallbackChain) error {
	r.chains = append(r.chains, c)
	return nil
}

func (r *stubChainRepo) Count(_ context.Context) (int, error) {
	return len(r.chains), nil
}

type stubVetoer struct {
	vetoed map[string]bool
}

func (v *stubVetoer) VetoesProvider(_ context.Context, provider string, _ *entity.RequestParams) (bool, error) {
	return v.vetoed[provider], nil
}

func videoRow(provider string, healthy bool, priority int, score float64, free bool) *entity.ProviderMetrics {
	return &entity.ProviderMetrics{
		Provider:       provider,
		ServiceType:    entity.ServiceVideo,
		IsFreeProvider: free,
		BasePriority:   10,
		HealthScore:    score,
		IsHealthy:      healthy,
		Priority:       priority,
	}
}

func quality(provider string, avgScore, acceptanceRate float64, reviews int) *entity.QualityScore {
	return &entity.QualityScore{
		Provider:        provider,
		ServiceType:     entity.ServiceVideo,
		TotalReviews:    reviews,
		AcceptanceRate:  acceptanceRate,
		AvgQualityScore: avgScore,
	}
}

func newTestRouter(metricsRepo *stubMetricsRepo, qualityRepo *stubQualityRepo, tiers *stubTierRepo, vetoer Vetoer) (*Router, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC))
	if qualityRepo == nil {
		qualityRepo = &stubQualityRepo{}
	}
	if tiers == nil {
		tiers = &stubTierRepo{}
	}
	return NewRouter(metricsRepo, qualityRepo, tiers, &stubChainRepo{}, vetoer, clk, nil), clk
}

func TestSmartOrder_RanksByPriority(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("slow", true, 3, 40, false),
		videoRow("fast", true, 9, 95, false),
		videoRow("mid", true, 6, 70, false),
	}}
	r, _ := newTestRouter(repo, nil, nil, nil)

	got, err := r.SmartOrder(context.Background(), entity.ServiceVideo, Options{})
	if err != nil {
		t.Fatalf("SmartOrder() error = %v", err)
	}
	want := []string{"fast", "mid", "slow"}
	assertOrder(t, got, want)
}

func TestSmartOrder_ExcludesUnhealthyAndCooldown(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("healthy", true, 5, 80, false),
		videoRow("sick", false, 5, 30, false),
		videoRow("cooling", true, 8, 90, false),
	}}
	r, clk := newTestRouter(repo, nil, nil, nil)
	resetAt := clk.Now().Add(2 * time.Minute)
	repo.rows[2].RateLimitResetAt = &resetAt

	got, err := r.SmartOrder(context.Background(), entity.ServiceVideo, Options{})
	if err != nil {
		t.Fatalf("SmartOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"healthy"})

	// the cooldown is an absolute timestamp: expiry restores the provider
	clk.Advance(3 * time.Minute)
	got, err = r.SmartOrder(context.Background(), entity.ServiceVideo, Options{})
	if err != nil {
		t.Fatalf("SmartOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"cooling", "healthy"})
}

func TestSmartOrder_FreeOnlyAndExclusions(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("free-a", true, 5, 80, true),
		videoRow("free-b", true, 7, 85, true),
		videoRow("paid", true, 9, 95, false),
	}}
	r, _ := newTestRouter(repo, nil, nil, nil)

	got, err := r.SmartOrder(context.Background(), entity.ServiceVideo, Options{
		FreeOnly:         true,
		ExcludeProviders: []string{"free-b"},
	})
	if err != nil {
		t.Fatalf("SmartOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"free-a"})
}

func TestSmartOrder_LearnedPatternVeto(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("vetoed", true, 9, 95, false),
		videoRow("clean", true, 5, 80, false),
	}}
	r, _ := newTestRouter(repo, nil, nil, &stubVetoer{vetoed: map[string]bool{"vetoed": true}})

	got, err := r.SmartOrder(context.Background(), entity.ServiceVideo, Options{
		Params: &entity.RequestParams{DurationSeconds: 30},
	})
	if err != nil {
		t.Fatalf("SmartOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"clean"})
}

func TestSmartOrder_UnknownServiceType(t *testing.T) {
	r, _ := newTestRouter(&stubMetricsRepo{}, nil, nil, nil)
	if _, err := r.SmartOrder(context.Background(), "hologram", Options{}); err == nil {
		t.Error("SmartOrder() should reject an unknown service type")
	}
}

func TestQualityAwareOrder_CinematicRanksQualityFirst(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("artisan", true, 5, 80, false),
		videoRow("workhorse", true, 5, 80, false),
	}}
	qualityRepo := &stubQualityRepo{rows: map[string]*entity.QualityScore{
		"artisan/video":   quality("artisan", 95, 90, 20),
		"workhorse/video": quality("workhorse", 60, 80, 20),
	}}
	r, _ := newTestRouter(repo, qualityRepo, nil, nil)

	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: entity.TierCinematic})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	// equal health, cinematic weight 0.7: higher quality wins
	assertOrder(t, got, []string{"artisan", "workhorse"})
}

func TestQualityAwareOrder_CinematicAcceptanceGate(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("accepted", true, 5, 80, false),
		videoRow("rejected", true, 5, 80, false),
	}}
	qualityRepo := &stubQualityRepo{rows: map[string]*entity.QualityScore{
		"accepted/video": quality("accepted", 70, 85, 20),
		"rejected/video": quality("rejected", 90, 55, 20),
	}}
	r, _ := newTestRouter(repo, qualityRepo, nil, nil)

	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: entity.TierCinematic})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"accepted"})
}

func TestQualityAwareOrder_DraftPrioritizesFree(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("paid-great", true, 9, 95, false),
		videoRow("free-okay", true, 5, 70, true),
	}}
	qualityRepo := &stubQualityRepo{rows: map[string]*entity.QualityScore{
		"paid-great/video": quality("paid-great", 95, 90, 20),
		"free-okay/video":  quality("free-okay", 60, 80, 20),
	}}
	tiers := &stubTierRepo{configs: map[entity.QualityTier]*entity.QualityTierConfig{
		entity.TierDraft: {TierName: entity.TierDraft, PrioritizeFree: true},
	}}
	r, _ := newTestRouter(repo, qualityRepo, tiers, nil)

	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: entity.TierDraft})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	// free providers first regardless of score
	assertOrder(t, got, []string{"free-okay", "paid-great"})
}

func TestQualityAwareOrder_MinQualityFiltersBeforeBoost(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("preferred-weak", true, 5, 40, false),
		videoRow("plain-strong", true, 5, 90, false),
	}}
	qualityRepo := &stubQualityRepo{rows: map[string]*entity.QualityScore{
		"preferred-weak/video": quality("preferred-weak", 40, 90, 20),
		"plain-strong/video":   quality("plain-strong", 90, 90, 20),
	}}
	tiers := &stubTierRepo{configs: map[entity.QualityTier]*entity.QualityTierConfig{
		entity.TierProduction: {TierName: entity.TierProduction, PreferredProviders: []string{"preferred-weak"}},
	}}
	r, _ := newTestRouter(repo, qualityRepo, tiers, nil)

	// preferred-weak combined = 40*0.5 + 40*0.5 = 40, below the floor even
	// though the 1.2 boost would lift it to 48
	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{
		Tier:            entity.TierProduction,
		MinQualityScore: 45,
	})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"plain-strong"})
}

func TestQualityAwareOrder_PreferredBoostReorders(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("preferred", true, 5, 80, false),
		videoRow("plain", true, 5, 85, false),
	}}
	qualityRepo := &stubQualityRepo{rows: map[string]*entity.QualityScore{
		"preferred/video": quality("preferred", 80, 90, 20),
		"plain/video":     quality("plain", 85, 90, 20),
	}}
	tiers := &stubTierRepo{configs: map[entity.QualityTier]*entity.QualityTierConfig{
		entity.TierProduction: {TierName: entity.TierProduction, PreferredProviders: []string{"preferred"}},
	}}
	r, _ := newTestRouter(repo, qualityRepo, tiers, nil)

	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: entity.TierProduction})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	// preferred: 80*1.2 = 96 beats plain 85
	assertOrder(t, got, []string{"preferred", "plain"})
}

func TestQualityAwareOrder_TierExclusions(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("banned", true, 9, 95, false),
		videoRow("allowed", true, 5, 80, false),
	}}
	tiers := &stubTierRepo{configs: map[entity.QualityTier]*entity.QualityTierConfig{
		entity.TierProduction: {TierName: entity.TierProduction, ExcludedProviders: []string{"banned"}},
	}}
	r, _ := newTestRouter(repo, nil, tiers, nil)

	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: entity.TierProduction})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"allowed"})
}

func TestQualityAwareOrder_UnreviewedProviderRoutable(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("newcomer", true, 5, 90, false),
	}}
	r, _ := newTestRouter(repo, nil, nil, nil)

	got, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: entity.TierCinematic})
	if err != nil {
		t.Fatalf("QualityAwareOrder() error = %v", err)
	}
	assertOrder(t, got, []string{"newcomer"})
}

func TestQualityAwareOrder_UnknownTier(t *testing.T) {
	r, _ := newTestRouter(&stubMetricsRepo{}, nil, nil, nil)
	if _, err := r.QualityAwareOrder(context.Background(), entity.ServiceVideo, QualityOptions{Tier: "imax"}); err == nil {
		t.Error("QualityAwareOrder() should reject an unknown tier")
	}
}

func TestUpdateQualityFromReview(t *testing.T) {
	qualityRepo := &stubQualityRepo{}
	r, _ := newTestRouter(&stubMetricsRepo{}, qualityRepo, nil, nil)

	rating := 4.5
	q, err := r.UpdateQualityFromReview(context.Background(), "runway", entity.ServiceVideo, true, &rating)
	if err != nil {
		t.Fatalf("UpdateQualityFromReview() error = %v", err)
	}
	if q.AvgQualityScore != entity.InitialQuality+entity.QualityAcceptNudge {
		t.Errorf("avg quality = %f, want %d", q.AvgQualityScore, entity.InitialQuality+entity.QualityAcceptNudge)
	}
	if q.AcceptanceRate != 100 {
		t.Errorf("acceptance rate = %f, want 100", q.AcceptanceRate)
	}
	if q.AvgUserRating != 4.5 {
		t.Errorf("avg rating = %f, want 4.5", q.AvgUserRating)
	}

	q, err = r.UpdateQualityFromReview(context.Background(), "runway", entity.ServiceVideo, false, nil)
	if err != nil {
		t.Fatalf("UpdateQualityFromReview() error = %v", err)
	}
	if q.AvgQualityScore != entity.InitialQuality+entity.QualityAcceptNudge+entity.QualityRejectNudge {
		t.Errorf("avg quality = %f after rejection", q.AvgQualityScore)
	}
	if q.AcceptanceRate != 50 {
		t.Errorf("acceptance rate = %f, want 50", q.AcceptanceRate)
	}
}

func TestProviderStatus_AllAndScoped(t *testing.T) {
	repo := &stubMetricsRepo{rows: []*entity.ProviderMetrics{
		videoRow("v1", true, 5, 80, false),
		{Provider: "i1", ServiceType: entity.ServiceImage, IsHealthy: true},
	}}
	r, _ := newTestRouter(repo, nil, nil, nil)

	all, err := r.ProviderStatus(context.Background(), "")
	if err != nil {
		t.Fatalf("ProviderStatus() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all rows = %d, want 2", len(all))
	}

	scoped, err := r.ProviderStatus(context.Background(), entity.ServiceImage)
	if err != nil {
		t.Fatalf("ProviderStatus() error = %v", err)
	}
	if len(scoped) != 1 || scoped[0].Provider != "i1" {
		t.Errorf("scoped rows = %+v, want one image row", scoped)
	}
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
