package mint

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"nftforge/internal/domain"
	"nftforge/internal/infra"
)

// ErrClosed is returned by operations on a workflow that has been closed.
var ErrClosed = errors.New("workflow closed")

// Options configure a Workflow.
type Options struct {
	ID        string
	Generator ImageGenerator
	Store     ContentStore
	Minter    Minter
	// Payment is passed to the minter as is; nil lets the minter decide.
	Payment *big.Int
	Logger  *infra.Logger
	Now     func() time.Time
}

// Snapshot is a consistent copy of the workflow at one point in time.
type Snapshot struct {
	ID        string
	Epoch     uint64
	State     domain.WorkflowState
	Request   domain.MintRequest
	Image     *domain.GeneratedImage
	Artifact  *domain.StoredArtifact
	Receipt   *domain.MintReceipt
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreviewURL renders the generated image as a data URL, or "" when no image
// is held.
func (s Snapshot) PreviewURL() string {
	if s.Image.Empty() {
		return ""
	}
	ct := s.Image.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(s.Image.Bytes)
}

// Event is one observed transition. From equals State.Stage for the first
// event of a subscription, which replays the current state.
type Event struct {
	Seq  uint64
	From domain.Stage
	Snapshot
}

// Workflow drives one mint request through generate, store and mint. All
// external calls run on a background goroutine, one at a time per workflow.
type Workflow struct {
	id      string
	gen     ImageGenerator
	store   ContentStore
	minter  Minter
	payment *big.Int
	logger  *infra.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     domain.WorkflowState
	req       domain.MintRequest
	image     *domain.GeneratedImage
	artifact  *domain.StoredArtifact
	receipt   *domain.MintReceipt
	attempts  int
	epoch     uint64
	running   int
	seq       uint64
	createdAt time.Time
	updatedAt time.Time
	subs      []*subscription
	closed    bool
}

func New(opts Options) (*Workflow, error) {
	if opts.Generator == nil || opts.Store == nil || opts.Minter == nil {
		return nil, errors.New("mint: generator, store and minter are required")
	}
	if opts.ID == "" {
		return nil, errors.New("mint: workflow id is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	created := now()
	return &Workflow{
		id:        opts.ID,
		gen:       opts.Generator,
		store:     opts.Store,
		minter:    opts.Minter,
		payment:   opts.Payment,
		logger:    logger,
		now:       now,
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.WorkflowState{Stage: domain.StageIdle},
		createdAt: created,
		updatedAt: created,
	}, nil
}

func (w *Workflow) ID() string { return w.id }

// CurrentState returns the latest state.
func (w *Workflow) CurrentState() domain.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns the latest state together with the artifacts it refers to.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Submit validates req and starts generating an image for it. From a
// terminal state the previous request and its artifacts are discarded first;
// from ImageReady the held image is discarded and a new one generated.
func (w *Workflow) Submit(req domain.MintRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startLocked(req)
}

// Regenerate re-rolls the image for the current request.
func (w *Workflow) Regenerate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.req.Validate() != nil {
		return &domain.ValidationError{Field: "request", Message: "nothing to regenerate, submit a request first"}
	}
	return w.startLocked(w.req)
}

// ConfirmMint uploads the held image and mints it. It is only valid from
// ImageReady; in any other state it changes nothing and returns a
// ValidationError wrapping domain.ErrNotReady.
func (w *Workflow) ConfirmMint() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.state.Stage != domain.StageImageReady || w.image.Empty() {
		return &domain.ValidationError{
			Field:   "stage",
			Message: fmt.Sprintf("cannot confirm mint while %s", w.state.Stage),
			Err:     domain.ErrNotReady,
		}
	}
	req, img, epoch := w.req, w.image, w.epoch
	w.setLocked(domain.StageUploadingImage, nil)
	w.launchLocked(func(ctx context.Context) { w.commit(ctx, epoch, req, img) })
	return nil
}

// Reset abandons the current request and returns to Idle. A call still in
// flight keeps running but its result is discarded.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.epoch++
	w.clearLocked()
	w.req = domain.MintRequest{}
	if w.state.Stage != domain.StageIdle {
		w.setLocked(domain.StageIdle, nil)
	}
}

// Subscribe streams every transition in order. The first event replays the
// current state. Call cancel to stop receiving; the channel is closed when
// the subscription or the workflow ends.
func (w *Workflow) Subscribe() (<-chan Event, func()) {
	s := newSubscription()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		s.close()
		return s.out, func() {}
	}
	s.push(Event{Seq: w.seq, From: w.state.Stage, Snapshot: w.snapshotLocked()})
	w.subs = append(w.subs, s)
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		for i, cur := range w.subs {
			if cur == s {
				w.subs = append(w.subs[:i], w.subs[i+1:]...)
				break
			}
		}
		w.mu.Unlock()
		s.stop()
	}
	return s.out, cancel
}

// Wait blocks until no background call is running.
func (w *Workflow) Wait() {
	w.wg.Wait()
}

// Busy reports whether a background call is still running, including an
// abandoned one.
func (w *Workflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running > 0
}

// Close cancels running calls, discards their results and ends all
// subscriptions.
func (w *Workflow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.epoch++
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()

	w.cancel()
	for _, s := range subs {
		s.close()
	}
}

func (w *Workflow) startLocked(req domain.MintRequest) error {
	if w.closed {
		return ErrClosed
	}
	if w.state.Stage.InFlight() || w.running > 0 {
		return domain.ErrWorkflowBusy
	}
	w.epoch++
	if w.state.Stage.Terminal() {
		w.clearLocked()
		w.attempts = 0
		w.setLocked(domain.StageIdle, nil)
	}
	if w.req != req {
		w.attempts = 0
	}
	w.image = nil
	w.req = req
	w.attempts++
	epoch := w.epoch
	w.setLocked(domain.StageGeneratingImage, nil)
	w.launchLocked(func(ctx context.Context) { w.generate(ctx, epoch, req.Description) })
	return nil
}

func (w *Workflow) generate(ctx context.Context, epoch uint64, description string) {
	started := w.now()
	img, err := w.gen.Generate(ctx, description)
	if err == nil && img.Empty() {
		err = errors.New("empty image")
	}
	w.finish(epoch, func() {
		if err != nil {
			w.failLocked(asGenerationError(err))
			return
		}
		w.image = img
		w.logger.Debug().
			Str("workflow_id", w.id).
			Str("content_type", img.ContentType).
			Int("bytes", len(img.Bytes)).
			Dur("took", w.now().Sub(started)).
			Msg("mint: image generated")
		w.setLocked(domain.StageImageReady, nil)
	})
}

func (w *Workflow) commit(ctx context.Context, epoch uint64, req domain.MintRequest, img *domain.GeneratedImage) {
	artifact, err := w.store.Store(ctx, img, req.Labels())
	if err == nil && (artifact == nil || artifact.ContentID == "" || artifact.RetrievalURL == "") {
		err = errors.New("no content identifier returned")
	}
	if err != nil {
		w.finish(epoch, func() { w.failLocked(asStorageError(err)) })
		return
	}
	current := w.step(epoch, func() {
		w.artifact = artifact
		if artifact.MetadataWarning != "" {
			w.logger.Warn().Str("workflow_id", w.id).Str("cid", artifact.ContentID).Str("warning", artifact.MetadataWarning).Msg("mint: metadata update incomplete")
		}
		w.setLocked(domain.StageMinting, nil)
	})
	if !current {
		w.finish(epoch, nil)
		return
	}

	receipt, err := w.minter.Mint(ctx, artifact.RetrievalURL, w.payment)
	if err == nil && (receipt == nil || receipt.TransactionHash == "") {
		err = errors.New("no transaction receipt returned")
	}
	w.finish(epoch, func() {
		if err != nil {
			w.failLocked(asLedgerError(err))
			return
		}
		out := *receipt
		if out.TokenURI == "" {
			out.TokenURI = artifact.RetrievalURL
		}
		w.receipt = &out
		w.setLocked(domain.StageSucceeded, nil)
	})
}

// launchLocked runs fn in the background and counts it as in flight until
// finish is called.
func (w *Workflow) launchLocked(fn func(ctx context.Context)) {
	w.running++
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(w.ctx)
	}()
}

// step applies an intermediate transition if epoch is still current.
func (w *Workflow) step(epoch uint64, apply func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return false
	}
	apply()
	return true
}

// finish releases the in-flight slot and applies the final transition of a
// background call in the same critical section, so no caller observes a
// settled state while the slot is still held.
func (w *Workflow) finish(epoch uint64, apply func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running--
	if epoch != w.epoch {
		w.logger.Info().Str("workflow_id", w.id).Msg("mint: discarding result of abandoned call")
		return
	}
	if apply != nil {
		apply()
	}
}

func (w *Workflow) failLocked(err error) {
	w.logger.Error().Err(err).Str("workflow_id", w.id).Str("stage", string(w.state.Stage)).Msg("mint: workflow failed")
	w.setLocked(domain.StageFailed, err)
}

func (w *Workflow) setLocked(stage domain.Stage, err error) {
	from := w.state.Stage
	w.state = domain.WorkflowState{Stage: stage}
	if stage == domain.StageFailed {
		w.state.Err = err
		w.state.Reason = Reason(err)
	}
	w.updatedAt = w.now()
	w.seq++
	w.logger.Info().Str("workflow_id", w.id).Str("from", string(from)).Str("to", string(stage)).Msg("mint: transition")

	ev := Event{Seq: w.seq, From: from, Snapshot: w.snapshotLocked()}
	for _, s := range w.subs {
		s.push(ev)
	}
}

func (w *Workflow) clearLocked() {
	w.image = nil
	w.artifact = nil
	w.receipt = nil
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        w.id,
		Epoch:     w.epoch,
		State:     w.state,
		Request:   w.req,
		Image:     w.image,
		Artifact:  w.artifact,
		Receipt:   w.receipt,
		Attempts:  w.attempts,
		CreatedAt: w.createdAt,
		UpdatedAt: w.updatedAt,
	}
}

func asGenerationError(err error) error {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	return &domain.GenerationError{Err: err}
}

func asStorageError(err error) error {
	var storeErr *domain.StorageError
	if errors.As(err, &storeErr) {
		return err
	}
	return &domain.StorageError{Op: "upload", Err: err}
}

func asLedgerError(err error) error {
	var signErr *domain.SigningError
	var mintErr *domain.MintError
	if errors.As(err, &signErr) || errors.As(err, &mintErr) {
		return err
	}
	return &domain.MintError{Raw: err.Error(), Err: err}
}
