// Package github collects repository statistics from the GitHub REST API.
//
// Each asset names a repository through its Owner and Repository
// attributes. Summary values (stars, forks, 14-day view totals...) are
// written to the asset itself, daily traffic samples to a "Traffic" child
// element created on first use.
package github

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	gh "github.com/google/go-github/v61/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
)

const Kind = "github"

// Asset attributes read by the collector.
const (
	AttrOwner      = "Owner"
	AttrRepository = "Repository"
	AttrToken      = "Token"
)

// Attributes written by the collector.
const (
	AttrStars       = "Stars"
	AttrForks       = "Forks"
	AttrOpenIssues  = "Open Issues"
	AttrWatchers    = "Watchers"
	AttrSubscribers = "Subscribers"
	AttrViews       = "Views"
	AttrUniqueViews = "Unique Views"

	TrafficElement = "Traffic"
)

// Option keys understood in collector.Settings.Options.
const (
	OptToken             = "token"
	OptBaseURL           = "base_url"
	OptRequestsPerSecond = "requests_per_second"
	OptBurst             = "burst"
	OptMinRemainingQuota = "min_remaining_quota"
	OptTraffic           = "traffic"
	OptTrafficTemplate   = "traffic_template"
)

func init() {
	collector.Register(Kind, func(s collector.Settings) (collector.Collector, error) {
		return New(s)
	})
}

type options struct {
	token           string
	baseURL         string
	rps             float64
	burst           int
	minQuota        int
	traffic         bool
	trafficTemplate string
}

func parseOptions(s collector.Settings) (options, error) {
	o := options{
		token:           s.String(OptToken, os.Getenv("GITHUB_TOKEN")),
		baseURL:         s.String(OptBaseURL, ""),
		trafficTemplate: s.String(OptTrafficTemplate, "GitHub Traffic"),
	}
	var err error
	if o.rps, err = s.Float(OptRequestsPerSecond, 5); err != nil {
		return o, err
	}
	if o.burst, err = s.Int(OptBurst, 10); err != nil {
		return o, err
	}
	if o.minQuota, err = s.Int(OptMinRemainingQuota, 100); err != nil {
		return o, err
	}
	if o.traffic, err = s.Bool(OptTraffic, true); err != nil {
		return o, err
	}
	if o.rps <= 0 || o.burst <= 0 {
		return o, errors.Newf("%s and %s must be positive", OptRequestsPerSecond, OptBurst)
	}
	return o, nil
}

// Option customises a Collector at construction.
type Option func(*Collector)

// WithHTTPClient sets the client whose transport every API call goes
// through. Token clients wrap its transport.
func WithHTTPClient(c *http.Client) Option { return func(g *Collector) { g.base = c } }

func WithLogger(l *zap.Logger) Option { return func(g *Collector) { g.log = l } }

// WithClock overrides time.Now for value timestamps.
func WithClock(now func() time.Time) Option { return func(g *Collector) { g.now = now } }

// Collector reads repository statistics. It is safe for concurrent use.
type Collector struct {
	base *http.Client
	log  *zap.Logger
	now  func() time.Time

	mu       sync.RWMutex
	settings collector.Settings
	opts     options
	limiter  *rate.Limiter
	clients  map[string]*gh.Client // by token, "" is anonymous

	// 每个 token 独立的配额，来自最近一次 API 响应
	qmu    sync.Mutex
	quotas map[string]quota
}

type quota struct {
	remaining int64
	reset     time.Time
}

func New(s collector.Settings, opts ...Option) (*Collector, error) {
	c := &Collector{
		base:   &http.Client{Timeout: 30 * time.Second},
		log:    logger.Named("collector.github"),
		now:    time.Now,
		quotas: map[string]quota{},
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.configure(s); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) configure(s collector.Settings) error {
	o, err := parseOptions(s)
	if err != nil {
		return errors.Wrap(err, "github collector options")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s.Clone()
	c.opts = o
	c.limiter = rate.NewLimiter(rate.Limit(o.rps), o.burst)
	c.clients = map[string]*gh.Client{}
	return nil
}

func (c *Collector) Name() string { return Kind }

func (c *Collector) ConcurrencySafe() bool { return true }

func (c *Collector) GetSettings() collector.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Clone()
}

// SetSettings re-reads the options; invalid options keep the previous ones.
func (c *Collector) SetSettings(s collector.Settings) {
	if err := c.configure(s); err != nil {
		c.log.Warn("ignoring github collector settings", zap.Error(err))
	}
}

func (c *Collector) Fetch(ctx context.Context, a *asset.Descriptor) (collector.Batch, error) {
	owner := strings.TrimSpace(a.AttributeOr(AttrOwner, asset.String("")).AsString())
	repo := strings.TrimSpace(a.AttributeOr(AttrRepository, asset.String("")).AsString())
	if owner == "" || repo == "" {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "read attributes",
			errors.Wrapf(collector.ErrNotConfigured, "%s and %s attributes are required", AttrOwner, AttrRepository))
	}

	c.mu.RLock()
	o := c.opts
	c.mu.RUnlock()

	token := a.AttributeOr(AttrToken, asset.String(o.token)).AsString()
	batch := collector.NewBatch(Kind, a)
	if q, low := c.quotaLow(token, o.minQuota); low {
		// 配额不足时返回空批次，等待下个周期
		c.log.Info("github quota nearly exhausted, skipping asset",
			zap.String("asset", a.Path()),
			zap.Int64("remaining", q.remaining),
			zap.Time("reset", q.reset))
		return batch, nil
	}

	client, err := c.client(token, o)
	if err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "build client", err)
	}

	if err := c.wait(ctx); err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "rate limit", err)
	}
	r, resp, err := client.Repositories.Get(ctx, owner, repo)
	c.track(token, resp)
	if err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "get repository", classify(err, owner, repo))
	}

	ts := c.now().UTC().Truncate(time.Second)
	batch.Add(a.Ref(AttrStars), int64(r.GetStargazersCount()), ts)
	batch.Add(a.Ref(AttrForks), int64(r.GetForksCount()), ts)
	batch.Add(a.Ref(AttrOpenIssues), int64(r.GetOpenIssuesCount()), ts)
	batch.Add(a.Ref(AttrWatchers), int64(r.GetWatchersCount()), ts)
	batch.Add(a.Ref(AttrSubscribers), int64(r.GetSubscribersCount()), ts)

	if !o.traffic {
		return batch, nil
	}

	if err := c.wait(ctx); err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "rate limit", err)
	}
	views, resp, err := client.Repositories.ListTrafficViews(ctx, owner, repo, &gh.TrafficBreakdownOptions{Per: "day"})
	c.track(token, resp)
	if err != nil {
		if isForbidden(err) {
			// traffic needs push access; keep the summary values
			c.log.Debug("no access to traffic, skipping", zap.String("repository", owner+"/"+repo))
			return batch, nil
		}
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "list traffic", classify(err, owner, repo))
	}

	// 汇总值先于逐日原始值输出
	batch.Add(a.Ref(AttrViews), int64(views.GetCount()), ts)
	batch.Add(a.Ref(AttrUniqueViews), int64(views.GetUniques()), ts)
	if len(views.Views) == 0 {
		return batch, nil
	}

	child, err := a.CreateChild(ctx, TrafficElement, o.trafficTemplate)
	if err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "create traffic element", err)
	}
	for _, d := range views.Views {
		day := d.GetTimestamp().Time.UTC()
		batch.Add(child.Ref(AttrViews), int64(d.GetCount()), day)
		batch.Add(child.Ref(AttrUniqueViews), int64(d.GetUniques()), day)
	}
	return batch, nil
}

// client returns the cached API client for token.
func (c *Collector) client(token string, o options) (*gh.Client, error) {
	c.mu.RLock()
	cl, ok := c.clients[token]
	c.mu.RUnlock()
	if ok {
		return cl, nil
	}

	hc := c.base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	cl = gh.NewClient(hc)
	if o.baseURL != "" {
		var err error
		if cl, err = cl.WithEnterpriseURLs(o.baseURL, o.baseURL); err != nil {
			return nil, errors.Wrapf(err, "base url %q", o.baseURL)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.clients[token]; ok {
		return existing, nil
	}
	c.clients[token] = cl
	return cl, nil
}

func (c *Collector) wait(ctx context.Context) error {
	c.mu.RLock()
	l := c.limiter
	c.mu.RUnlock()
	return l.Wait(ctx)
}

func (c *Collector) track(token string, resp *gh.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	c.qmu.Lock()
	c.quotas[token] = quota{remaining: int64(resp.Rate.Remaining), reset: resp.Rate.Reset.Time}
	c.qmu.Unlock()
}

func (c *Collector) quotaLow(token string, floor int) (quota, bool) {
	c.qmu.Lock()
	q, ok := c.quotas[token]
	c.qmu.Unlock()
	if !ok || q.remaining >= int64(floor) {
		return q, false
	}
	return q, c.now().Before(q.reset)
}

// Remaining is the last API quota seen for token, -1 before its first call.
func (c *Collector) Remaining(token string) int64 {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if q, ok := c.quotas[token]; ok {
		return q.remaining
	}
	return -1
}

func classify(err error, owner, repo string) error {
	wrapped := errors.Wrapf(err, "%s/%s", owner, repo)
	var rl *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &rl) || errors.As(err, &abuse) {
		return errors.Mark(wrapped, collector.ErrRateLimited)
	}
	return errors.Mark(wrapped, collector.ErrExternal)
}

func isForbidden(err error) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusForbidden
}
