// Package smoketest provides an end to end probe that exercises a running
// server through its public websocket endpoint: it inserts an object, queries
// it back through every query type, then removes it.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/raidolabs/raido/models"
	"github.com/raidolabs/raido/spatial"
	raidows "github.com/raidolabs/raido/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	defaultTimeout = time.Second * 15

	// The probe object is placed well inside the default root bounds so it
	// never trips out of bounds rejection.
	probeCenter     = 10.0
	probeHalfExtent = 0.5
)

// Request asks a server to smoke test the given endpoint.
type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// Results reports the outcome of a smoke test run.
type Results struct {
	Endpoint  string        `json:"endpoint"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Passed    bool          `json:"passed"`
	Steps     []StepResult  `json:"steps"`
	Error     string        `json:"error,omitempty"`
}

// StepResult reports one probe step.
type StepResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

type Options struct {
	// The public endpoint the probed server is reachable on.
	Endpoint string

	UserAgent string

	// SendResult delivers the results of a finished run.
	SendResult func(context.Context, Results) error
}

type RunOptions struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest launches a smoke test run against the endpoint named in the
// request body. The run happens in the background, results are delivered
// through opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Error(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		endpoint := req.Endpoint
		if endpoint == "" {
			endpoint = opts.Endpoint
		}

		go func() {
			defer func() {
				// cancel context on exit to signal function exited, this is
				// used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res := Run(ctx, RunOptions{
				Endpoint:  endpoint,
				UserAgent: opts.UserAgent,
				Timeout:   req.Timeout,
			})

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run dials the endpoint and walks the probe object through the full
// insert/query/raycast/remove cycle.
func Run(ctx context.Context, opts RunOptions) Results {
	res := Results{
		Endpoint:  opts.Endpoint,
		StartedAt: time.Now(),
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(opts)
	if err != nil {
		res.Duration = time.Since(res.StartedAt)
		res.Error = err.Error()
		return res
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	probe := newProbe(conn)
	objectID := uuid.NewString()

	steps := []struct {
		name string
		run  func() error
	}{
		{"ping", probe.ping},
		{"object_add", func() error { return probe.addObject(objectID) }},
		{"query_box", func() error { return probe.queryBox(objectID) }},
		{"query_sphere", func() error { return probe.querySphere(objectID) }},
		{"raycast", func() error { return probe.raycast(objectID) }},
		{"object_remove", func() error { return probe.removeObject(objectID) }},
	}

	for _, step := range steps {
		start := time.Now()
		if err := step.run(); err != nil {
			res.Duration = time.Since(res.StartedAt)
			res.Error = errors.New("smoke test step failed").
				WithTag("step", step.name).
				Wrap(err).
				Error()
			return res
		}
		res.Steps = append(res.Steps, StepResult{
			Name:     step.name,
			Duration: time.Since(start),
		})
	}

	res.Duration = time.Since(res.StartedAt)
	res.Passed = true
	return res
}

func dial(opts RunOptions) (*websocket.Conn, error) {
	endpoint := opts.Endpoint
	endpoint = strings.ReplaceAll(endpoint, "http://", "ws://")
	endpoint = strings.ReplaceAll(endpoint, "https://", "wss://")

	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return nil, errors.New("initializing web socket failed").Wrap(err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "raido-smoketest"
	}
	config.Header.Set("User-Agent", userAgent)
	config.Header.Set(raidows.HeaderClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing web socket failed").Wrap(err)
	}
	return conn, nil
}

type probe struct {
	conn *websocket.Conn
	ids  models.SequentialIDGenerator
}

func newProbe(conn *websocket.Conn) *probe {
	return &probe{conn: conn}
}

func (p *probe) bounds() spatial.BoundingBox {
	return spatial.NewBoundingBox(
		spatial.Vector3{X: probeCenter - probeHalfExtent, Y: probeCenter - probeHalfExtent, Z: probeCenter - probeHalfExtent},
		spatial.Vector3{X: probeCenter + probeHalfExtent, Y: probeCenter + probeHalfExtent, Z: probeCenter + probeHalfExtent},
	)
}

func (p *probe) ping() error {
	requestID := p.ids.New()

	var res raidows.Response
	if err := p.roundTrip(raidows.Request{Type: raidows.MsgTypePing, RequestID: requestID}, &res); err != nil {
		return err
	}
	if err := expectType(raidows.MsgTypePingResponse, res.Type); err != nil {
		return err
	}
	if res.RequestID != requestID {
		return errors.New("response does not correlate with the ping request").
			WithTag("want", requestID).
			WithTag("got", res.RequestID)
	}
	return nil
}

func (p *probe) addObject(id string) error {
	req := raidows.ObjectAddRequest{
		Type:      raidows.MsgTypeObjectAdd,
		RequestID: p.ids.New(),
		Object: &models.SpatialObject{
			ID:     id,
			Bounds: p.bounds(),
		},
	}

	var res raidows.ObjectAddResponse
	if err := p.roundTrip(req, &res); err != nil {
		return err
	}
	if err := expectType(raidows.MsgTypeObjectAddResponse, res.Type); err != nil {
		return err
	}
	if res.ObjectID != id {
		return errors.New("server stored an unexpected object id").
			WithTag("want", id).
			WithTag("got", res.ObjectID)
	}
	return nil
}

func (p *probe) queryBox(id string) error {
	req := raidows.QueryBoxRequest{
		Type:      raidows.MsgTypeQueryBox,
		RequestID: p.ids.New(),
		Bounds:    p.bounds(),
	}

	var res raidows.QueryResponse
	if err := p.roundTrip(req, &res); err != nil {
		return err
	}
	if err := expectType(raidows.MsgTypeQueryBoxResponse, res.Type); err != nil {
		return err
	}
	return expectObject(id, res.Result.Objects)
}

func (p *probe) querySphere(id string) error {
	req := raidows.QuerySphereRequest{
		Type:      raidows.MsgTypeQuerySphere,
		RequestID: p.ids.New(),
		Sphere: spatial.Sphere{
			Center: spatial.Vector3{X: probeCenter, Y: probeCenter, Z: probeCenter},
			Radius: probeHalfExtent * 2,
		},
	}

	var res raidows.QueryResponse
	if err := p.roundTrip(req, &res); err != nil {
		return err
	}
	if err := expectType(raidows.MsgTypeQuerySphereResponse, res.Type); err != nil {
		return err
	}
	return expectObject(id, res.Result.Objects)
}

func (p *probe) raycast(id string) error {
	req := raidows.RaycastRequest{
		Type:      raidows.MsgTypeRaycast,
		RequestID: p.ids.New(),
		Ray: spatial.Ray{
			Origin:    spatial.Vector3{X: 0, Y: probeCenter, Z: probeCenter},
			Direction: spatial.Vector3{X: 1, Y: 0, Z: 0},
		},
	}

	var res raidows.RaycastResponse
	if err := p.roundTrip(req, &res); err != nil {
		return err
	}
	if err := expectType(raidows.MsgTypeRaycastResponse, res.Type); err != nil {
		return err
	}
	if res.Result == nil || !res.Result.Hit || res.Result.Object == nil || res.Result.Object.ID != id {
		return errors.New("ray through the probe object missed")
	}
	return nil
}

func (p *probe) removeObject(id string) error {
	req := raidows.ObjectRemoveRequest{
		Type:      raidows.MsgTypeObjectRemove,
		RequestID: p.ids.New(),
		ObjectID:  id,
	}

	var res raidows.ObjectRemoveResponse
	if err := p.roundTrip(req, &res); err != nil {
		return err
	}
	if err := expectType(raidows.MsgTypeObjectRemoveResponse, res.Type); err != nil {
		return err
	}
	if !res.Removed {
		return errors.New("probe object was not removed")
	}
	return nil
}

func (p *probe) roundTrip(req, res any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errors.New("encoding message failed").Wrap(err)
	}
	if err := websocket.Message.Send(p.conn, string(data)); err != nil {
		return errors.New("sending message failed").Wrap(err)
	}

	var body string
	if err := websocket.Message.Receive(p.conn, &body); err != nil {
		return errors.New("receiving message failed").Wrap(err)
	}
	if err := json.Unmarshal([]byte(body), res); err != nil {
		return errors.New("decoding message failed").Wrap(err)
	}
	return nil
}

func expectType(want, got raidows.MsgType) error {
	if want != got {
		return errors.New("unexpected response type").
			WithTag("want", want).
			WithTag("got", got)
	}
	return nil
}

func expectObject(id string, objects []*models.SpatialObject) error {
	for _, o := range objects {
		if o.ID == id {
			return nil
		}
	}
	return errors.New("probe object missing from query result").
		WithTag("object_id", id)
}
