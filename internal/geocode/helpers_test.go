package geocode

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Lllllllleong/routeingest/internal/models"
)

func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient redirects requests for targetPrefix to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if !strings.HasPrefix(origURL, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + origURL[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}

type fakeClient struct {
	results map[string]models.LatLng
	errs    []error
	calls   []string
}

func (f *fakeClient) Geocode(_ context.Context, query string) (models.LatLng, bool, error) {
	f.calls = append(f.calls, query)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return models.LatLng{}, false, err
		}
	}
	ll, ok := f.results[query]
	return ll, ok, nil
}
