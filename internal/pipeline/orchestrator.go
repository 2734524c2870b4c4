// Package pipeline turns a brainstorm transcript into a set of coloring pages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/metrics"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/service"
)

// MaxAuthRetries bounds how often a run re-prompts for a credential.
const MaxAuthRetries = 1

// errStopped ends a run whose liveness flag was cleared.
var errStopped = errors.New("run stopped")

// Collaborators groups the generation dependencies of the orchestrator.
type Collaborators struct {
	Text        service.TextGenerator
	Images      service.ImageGenerator
	Credentials service.CredentialProvider
}

// Orchestrator drives Planning → Illustrating → Completed | Failed for one run at a time.
type Orchestrator struct {
	c      Collaborators
	ledger service.LedgerService
	log    *zap.Logger
	now    func() time.Time

	sceneAttempts int
}

// NewOrchestrator constructs an orchestrator. sceneAttempts < 1 means 1.
func NewOrchestrator(c Collaborators, ledger service.LedgerService, sceneAttempts int, log *zap.Logger) *Orchestrator {
	if sceneAttempts < 1 {
		sceneAttempts = 1
	}
	return &Orchestrator{c: c, ledger: ledger, log: log, now: time.Now, sceneAttempts: sceneAttempts}
}

// KindFor sizes a run from the ledger balance.
func KindFor(st model.EntitlementState) (Kind, int) {
	if st.Credits >= PaidRunCost {
		return KindPaid, PaidRunSize
	}
	return KindFree, FreeRunSize
}

// Run executes one generation. report receives every snapshot; it is never called
// after alive is stopped, and the ledger is charged only once alive has committed.
// Generation calls run on a context detached from ctx's cancellation; ctx only
// bounds the credential prompt.
func (o *Orchestrator) Run(ctx context.Context, job Job, req Request, alive *Liveness, report func(Job)) Job {
	start := o.now()
	callCtx := context.WithoutCancel(ctx)
	log := o.log.With(zap.String("job", job.ID.String()), zap.String("kind", string(job.Kind)))

	publish := func(j Job) bool {
		if !alive.Alive() {
			return false
		}
		report(j.clone())
		return true
	}

	for {
		job.Status, job.Progress, job.Scene = StatusPlanning, progressPlanning, 0
		job.Scenes, job.Pages, job.MissingScenes = nil, nil, nil
		if !publish(job) {
			return job
		}

		err := o.attempt(callCtx, &job, req, alive, publish, log)
		if errors.Is(err, errStopped) {
			log.Info("run stopped")
			return job
		}
		if err == nil {
			break
		}
		if errors.Is(err, errs.ErrPermissionDenied) {
			if job.RetryCount < MaxAuthRetries {
				job.RetryCount++
				log.Warn("generation permission denied, prompting for a credential", zap.Error(err))
				if perr := o.c.Credentials.PromptForCredential(ctx); perr != nil {
					return o.fail(job, fmt.Errorf("%w: %v", errs.ErrAuthorization, perr), alive, publish, start, log)
				}
				if !alive.Alive() {
					return job
				}
				continue
			}
			return o.fail(job, fmt.Errorf("%w: %v", errs.ErrAuthorization, err), alive, publish, start, log)
		}
		return o.fail(job, err, alive, publish, start, log)
	}

	if len(job.Pages) == 0 {
		return o.fail(job, fmt.Errorf("%w: no images were generated", errs.ErrGeneration), alive, publish, start, log)
	}
	// past this point Cancel can no longer discard the pages
	if !alive.Commit() {
		return job
	}

	switch job.Kind {
	case KindPaid:
		left, err := o.ledger.Deduct(callCtx, PaidRunCost)
		if err != nil {
			return o.fail(job, fmt.Errorf("%w: charge credits: %v", errs.ErrGeneration, err), alive, publish, start, log)
		}
		metrics.RecordSpend("book", PaidRunCost)
		job.Refill = left == 0
	case KindFree:
		if err := o.ledger.RecordFreeUse(callCtx, o.now()); err != nil {
			return o.fail(job, fmt.Errorf("%w: record free use: %v", errs.ErrGeneration, err), alive, publish, start, log)
		}
	}

	job.Status, job.Progress = StatusCompleted, progressDone
	job.FinishedAt = o.now()
	metrics.RecordRun(string(job.Kind), string(StatusCompleted), job.FinishedAt.Sub(start))
	log.Info("run completed", zap.Int("pages", len(job.Pages)), zap.Ints("missing", job.MissingScenes), zap.Bool("refill", job.Refill))
	publish(job)
	return job
}

// attempt plans and illustrates once. Pages accumulate into job.
func (o *Orchestrator) attempt(ctx context.Context, job *Job, req Request, alive *Liveness, publish func(Job) bool, log *zap.Logger) error {
	raw, err := o.c.Text.GenerateJSON(ctx, planPrompt(req, job.Total))
	if !alive.Alive() {
		return errStopped
	}
	if err != nil {
		return classify("plan scenes", err)
	}
	scenes, err := parseScenes(raw)
	if err != nil {
		return err
	}
	if len(scenes) > job.Total {
		scenes = scenes[:job.Total]
	}
	job.Scenes = scenes
	log.Debug("scenes planned", zap.Int("count", len(scenes)))

	n := len(scenes)
	for i, scene := range scenes {
		job.Status, job.Scene = StatusIllustrating, i+1
		if !publish(*job) {
			return errStopped
		}
		prompt := scenePrompt(scene, req.Theme, req.ChildName, req.Reference != nil)

		var page model.Image
		for try := 0; try < o.sceneAttempts && page.Empty(); try++ {
			imgs, err := o.c.Images.GenerateImage(ctx, prompt, req.Reference)
			if !alive.Alive() {
				return errStopped
			}
			if err != nil {
				return classify(fmt.Sprintf("illustrate scene %d", i+1), err)
			}
			page = firstImage(imgs)
			if page.Empty() {
				log.Warn("scene image missing", zap.Int("scene", i+1), zap.Int("try", try+1))
			}
		}
		if page.Empty() {
			metrics.RecordScene("missing")
			job.MissingScenes = append(job.MissingScenes, i)
		} else {
			metrics.RecordScene("ok")
			job.Pages = append(job.Pages, page)
		}
		job.Progress = sceneProgress(i+1, n)
		if !publish(*job) {
			return errStopped
		}
	}
	return nil
}

func (o *Orchestrator) fail(job Job, cause error, alive *Liveness, publish func(Job) bool, start time.Time, log *zap.Logger) Job {
	if !alive.Alive() {
		return job
	}
	job.Status = StatusFailed
	job.Cause = cause
	job.Error = failureMessage(cause)
	job.FinishedAt = o.now()
	metrics.RecordRun(string(job.Kind), string(StatusFailed), job.FinishedAt.Sub(start))
	log.Warn("run failed", zap.Error(cause), zap.Int("retries", job.RetryCount))
	publish(job)
	return job
}

// parseScenes accepts only a non-empty JSON array of strings.
func parseScenes(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: response is not JSON", errs.ErrPlanning)
	}
	res := gjson.Parse(raw)
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: response is not an array", errs.ErrPlanning)
	}
	var scenes []string
	for _, v := range res.Array() {
		if v.Type != gjson.String {
			return nil, fmt.Errorf("%w: scene is not a string", errs.ErrPlanning)
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			scenes = append(scenes, s)
		}
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: no scenes", errs.ErrPlanning)
	}
	return scenes, nil
}

func firstImage(imgs []model.Image) model.Image {
	for _, img := range imgs {
		if !img.Empty() {
			if img.MIMEType == "" {
				img.MIMEType = "image/png"
			}
			return img
		}
	}
	return model.Image{}
}

// classify keeps permission denials recognizable and marks the rest as generation failures.
func classify(op string, err error) error {
	if errors.Is(err, errs.ErrPermissionDenied) || errors.Is(err, errs.ErrPlanning) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, errs.ErrGeneration, err)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrPlanning):
		return "Could not plan scenes."
	case errors.Is(err, errs.ErrAuthorization):
		return "Generation is not authorized. Please select a paid API key."
	case errors.Is(err, errs.ErrGeneration) && strings.Contains(err.Error(), "no images were generated"):
		return "No images were generated."
	}
	return "Something went wrong: " + err.Error()
}
