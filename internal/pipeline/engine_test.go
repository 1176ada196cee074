package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aristath/contentpipe/internal/agent"
	"github.com/aristath/contentpipe/internal/events"
	"github.com/aristath/contentpipe/internal/persistence"
	"github.com/aristath/contentpipe/internal/queue"
)

// recordingRegistry builds stub executors for the five canonical stages.
// Each dispatch appends its stage type to order; stages listed in fail
// return an error, stages in results return the canned result.
func recordingRegistry(order *[]string, mu *sync.Mutex, results map[queue.TaskType]map[string]any, fail map[queue.TaskType]string) agent.Registry {
	reg := agent.Registry{}
	for _, typ := range []queue.TaskType{
		queue.TypeResearch, queue.TypeAnalysis, queue.TypeWriting, queue.TypeSEO, queue.TypeQuality,
	} {
		typ := typ
		reg[typ] = agent.ExecutorFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			mu.Lock()
			*order = append(*order, string(typ))
			mu.Unlock()

			if msg, ok := fail[typ]; ok {
				return nil, errors.New(msg)
			}
			if r, ok := results[typ]; ok {
				return r, nil
			}
			return map[string]any{"agent": string(typ)}, nil
		})
	}
	return reg
}

func TestCreatePipeline(t *testing.T) {
	engine := NewEngine(Config{Registry: agent.Registry{}})

	p, err := engine.CreatePipeline(context.Background(), "Go generics")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}

	if p.ID == "" || !strings.HasPrefix(p.ID, "pipe-") {
		t.Errorf("unexpected pipeline id %q", p.ID)
	}
	if p.Status != StatusRunning {
		t.Errorf("new pipeline status = %s, want %s", p.Status, StatusRunning)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}

	tasks := p.Tasks()
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}

	if len(p.Stages) != 5 {
		t.Fatalf("expected 5 stage ids, got %d", len(p.Stages))
	}
	for i, task := range tasks {
		if p.Stages[i] != task.ID {
			t.Errorf("stage %d = %s, want %s", i, p.Stages[i], task.ID)
		}
	}

	wantTitles := map[queue.TaskType]string{
		queue.TypeResearch: "Research: Go generics",
		queue.TypeAnalysis: "Analyze: Go generics",
		queue.TypeWriting:  "Write: Go generics",
		queue.TypeSEO:      "SEO Optimize: Go generics",
		queue.TypeQuality:  "Quality Check: Go generics",
	}
	wantPriority := map[queue.TaskType]int{
		queue.TypeResearch: queue.PriorityHigh,
		queue.TypeAnalysis: queue.PriorityHigh,
		queue.TypeWriting:  queue.PriorityMedium,
		queue.TypeSEO:      queue.PriorityMedium,
		queue.TypeQuality:  queue.PriorityHigh,
	}

	for _, task := range tasks {
		if !strings.HasPrefix(task.ID, string(task.Type)+"-") {
			t.Errorf("task id %q not prefixed with type %q", task.ID, task.Type)
		}
		if task.Title != wantTitles[task.Type] {
			t.Errorf("%s title = %q, want %q", task.Type, task.Title, wantTitles[task.Type])
		}
		if task.Priority != wantPriority[task.Type] {
			t.Errorf("%s priority = %d, want %d", task.Type, task.Priority, wantPriority[task.Type])
		}
		if task.Status != queue.StatusPending {
			t.Errorf("%s status = %s, want pending", task.Type, task.Status)
		}
		if task.Input["topic"] != "Go generics" {
			t.Errorf("%s input missing topic, got %v", task.Type, task.Input["topic"])
		}
		if task.Input["task_id"] != task.ID {
			t.Errorf("%s input task_id = %v, want %s", task.Type, task.Input["task_id"], task.ID)
		}
	}

	research, _ := p.Task(queue.TypeResearch)
	if research.Input["max_sources"] != 5 {
		t.Errorf("research input max_sources = %v, want 5", research.Input["max_sources"])
	}
	if len(research.Dependencies) != 0 {
		t.Errorf("research should have no dependencies, got %v", research.Dependencies)
	}

	writing, _ := p.Task(queue.TypeWriting)
	if writing.Input["style_guide"] != "professional" {
		t.Errorf("writing input style_guide = %v, want professional", writing.Input["style_guide"])
	}

	// Linear chain wired by resolved task IDs
	analysis, _ := p.Task(queue.TypeAnalysis)
	seo, _ := p.Task(queue.TypeSEO)
	quality, _ := p.Task(queue.TypeQuality)
	chain := []struct {
		task *queue.Task
		dep  *queue.Task
	}{
		{analysis, research},
		{writing, analysis},
		{seo, writing},
		{quality, seo},
	}
	for _, link := range chain {
		if len(link.task.Dependencies) != 1 || link.task.Dependencies[0] != link.dep.ID {
			t.Errorf("%s dependencies = %v, want [%s]", link.task.Type, link.task.Dependencies, link.dep.ID)
		}
	}
}

func TestCreatePipelineEmptyTopic(t *testing.T) {
	engine := NewEngine(Config{Registry: agent.Registry{}})

	for _, topic := range []string{"", "   ", "\t\n"} {
		if _, err := engine.CreatePipeline(context.Background(), topic); !errors.Is(err, ErrEmptyTopic) {
			t.Errorf("topic %q: got %v, want ErrEmptyTopic", topic, err)
		}
	}
}

func TestCreatePipelineRejectsCycle(t *testing.T) {
	engine := NewEngine(Config{
		Registry: agent.Registry{},
		Stages: []StageSpec{
			{Type: "alpha", Agent: "agent:alpha:main", Priority: queue.PriorityHigh, DependsOn: []queue.TaskType{"beta"}},
			{Type: "beta", Agent: "agent:beta:main", Priority: queue.PriorityHigh, DependsOn: []queue.TaskType{"alpha"}},
		},
	})

	_, err := engine.CreatePipeline(context.Background(), "cyclic graph")
	if !errors.Is(err, queue.ErrCyclicDependency) {
		t.Errorf("got %v, want ErrCyclicDependency", err)
	}
}

func TestCreatePipelineUnknownStageDep(t *testing.T) {
	engine := NewEngine(Config{
		Registry: agent.Registry{},
		Stages: []StageSpec{
			{Type: "alpha", Agent: "agent:alpha:main", Priority: queue.PriorityHigh, DependsOn: []queue.TaskType{"missing"}},
		},
	})

	_, err := engine.CreatePipeline(context.Background(), "bad graph")
	if !errors.Is(err, ErrUnknownStageDep) {
		t.Errorf("got %v, want ErrUnknownStageDep", err)
	}
}

func TestCreatePipelineDuplicateStage(t *testing.T) {
	engine := NewEngine(Config{
		Registry: agent.Registry{},
		Stages: []StageSpec{
			{Type: "alpha", Agent: "agent:alpha:main", Priority: queue.PriorityHigh},
			{Type: "alpha", Agent: "agent:alpha:other", Priority: queue.PriorityLow},
		},
	})

	_, err := engine.CreatePipeline(context.Background(), "duplicated")
	if !errors.Is(err, ErrDuplicateStage) {
		t.Errorf("got %v, want ErrDuplicateStage", err)
	}
}

func TestRunHappyPath(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, map[queue.TaskType]map[string]any{
		queue.TypeSEO:     {"optimized_content": "# Optimized article", "seo_score": 80},
		queue.TypeQuality: {"quality_score": 85, "approved": true},
	}, nil)
	engine := NewEngine(Config{Registry: registry})

	p, err := engine.CreatePipeline(context.Background(), "T")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if p.Status != StatusCompleted {
		t.Errorf("pipeline status = %s, want %s", p.Status, StatusCompleted)
	}
	if p.Iterations != 5 {
		t.Errorf("iterations = %d, want 5", p.Iterations)
	}
	if p.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}

	wantOrder := []string{"research", "analysis", "writing", "seo", "quality"}
	if len(order) != len(wantOrder) {
		t.Fatalf("dispatched %d tasks, want %d: %v", len(order), len(wantOrder), order)
	}
	for i, typ := range wantOrder {
		if order[i] != typ {
			t.Errorf("dispatch %d = %s, want %s", i, order[i], typ)
		}
	}

	report := engine.Report(p)
	if report.Status != StatusCompleted || report.Iterations != 5 {
		t.Errorf("report status/iterations = %s/%d", report.Status, report.Iterations)
	}
	qt, ok := report.Tasks[queue.TypeQuality]
	if !ok {
		t.Fatal("report missing quality task")
	}
	if approved, _ := qt.Result["approved"].(bool); !approved {
		t.Errorf("quality result approved = %v, want true", qt.Result["approved"])
	}
	for typ, tr := range report.Tasks {
		if tr.Status != queue.StatusCompleted {
			t.Errorf("%s report status = %s, want completed", typ, tr.Status)
		}
	}
}

func TestRunWritingFailure(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, nil, map[queue.TaskType]string{
		queue.TypeWriting: "writer rejected the outline",
	})
	engine := NewEngine(Config{Registry: registry})

	p, err := engine.CreatePipeline(context.Background(), "doomed topic")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("Run should absorb executor failures, got: %v", err)
	}

	if p.Status != StatusFailed {
		t.Errorf("pipeline status = %s, want %s", p.Status, StatusFailed)
	}

	research, _ := p.Task(queue.TypeResearch)
	analysis, _ := p.Task(queue.TypeAnalysis)
	for _, task := range []*queue.Task{research, analysis} {
		if task.Status != queue.StatusCompleted {
			t.Errorf("%s status = %s, want completed", task.Type, task.Status)
		}
	}

	writing, _ := p.Task(queue.TypeWriting)
	if writing.Status != queue.StatusFailed {
		t.Errorf("writing status = %s, want failed", writing.Status)
	}
	if !strings.Contains(writing.Error, "writer rejected the outline") {
		t.Errorf("writing error = %q", writing.Error)
	}

	// Downstream tasks fail by propagation, naming the writing task.
	seo, _ := p.Task(queue.TypeSEO)
	quality, _ := p.Task(queue.TypeQuality)
	if seo.Status != queue.StatusFailed {
		t.Errorf("seo status = %s, want failed", seo.Status)
	}
	if !strings.Contains(seo.Error, writing.ID) {
		t.Errorf("seo error %q does not reference %s", seo.Error, writing.ID)
	}
	if quality.Status != queue.StatusFailed {
		t.Errorf("quality status = %s, want failed", quality.Status)
	}
	if quality.Error == "" {
		t.Error("quality error is empty")
	}

	// Neither downstream stage was dispatched
	for _, typ := range order {
		if typ == "seo" || typ == "quality" {
			t.Errorf("stage %s dispatched after upstream failure", typ)
		}
	}
}

func TestRunEqualPriorityCreationOrder(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	exec := func(name string) agent.ExecutorFunc {
		return func(ctx context.Context, input map[string]any) (map[string]any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return map[string]any{"agent": name}, nil
		}
	}

	engine := NewEngine(Config{
		Registry: agent.Registry{
			"alpha": exec("alpha"),
			"beta":  exec("beta"),
			"gamma": exec("gamma"),
		},
		Stages: []StageSpec{
			{Type: "alpha", Agent: "agent:alpha:main", Priority: queue.PriorityMedium},
			{Type: "beta", Agent: "agent:beta:main", Priority: queue.PriorityMedium},
			{Type: "gamma", Agent: "agent:gamma:main", Priority: queue.PriorityMedium},
		},
	})

	p, err := engine.CreatePipeline(context.Background(), "parallel stages")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// All three are ready in the same batch; dispatch follows creation order.
	want := []string{"alpha", "beta", "gamma"}
	if len(order) != len(want) {
		t.Fatalf("dispatched %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", order, want)
		}
	}
	if p.Iterations != 1 {
		t.Errorf("iterations = %d, want 1 for a single batch", p.Iterations)
	}
}

func TestRunIterationBound(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, nil, nil)
	engine := NewEngine(Config{Registry: registry, MaxIterations: 2})

	p, err := engine.CreatePipeline(context.Background(), "slow graph")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}

	err = engine.Run(context.Background(), p)
	if err == nil {
		t.Fatal("expected iteration bound error, got nil")
	}
	if !strings.Contains(err.Error(), "exceeded") {
		t.Errorf("unexpected error: %v", err)
	}
	if p.Status != StatusFailed {
		t.Errorf("pipeline status = %s, want %s", p.Status, StatusFailed)
	}
	if p.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", p.Iterations)
	}
}

func TestRunMissingExecutor(t *testing.T) {
	// Registry lacks every stage executor
	engine := NewEngine(Config{Registry: agent.Registry{}})

	p, err := engine.CreatePipeline(context.Background(), "no executors")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("Run should absorb missing executors, got: %v", err)
	}

	if p.Status != StatusFailed {
		t.Errorf("pipeline status = %s, want %s", p.Status, StatusFailed)
	}
	research, _ := p.Task(queue.TypeResearch)
	if !strings.Contains(research.Error, "no executor registered") {
		t.Errorf("research error = %q", research.Error)
	}
}

func TestRunContextCancelled(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, nil, nil)
	engine := NewEngine(Config{Registry: registry})

	p, err := engine.CreatePipeline(context.Background(), "cancelled run")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := engine.Run(ctx, p); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if p.Status != StatusFailed {
		t.Errorf("pipeline status = %s, want %s", p.Status, StatusFailed)
	}
}

func TestRunFinishedPipeline(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, nil, nil)
	engine := NewEngine(Config{Registry: registry})

	p, err := engine.CreatePipeline(context.Background(), "run once")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	if err := engine.Run(context.Background(), p); !errors.Is(err, ErrPipelineFinished) {
		t.Errorf("second Run: got %v, want ErrPipelineFinished", err)
	}
}

func TestInputMerging(t *testing.T) {
	var (
		mu       sync.Mutex
		received = map[queue.TaskType]map[string]any{}
	)
	capture := func(typ queue.TaskType, result map[string]any) agent.ExecutorFunc {
		return func(ctx context.Context, input map[string]any) (map[string]any, error) {
			mu.Lock()
			received[typ] = input
			mu.Unlock()
			return result, nil
		}
	}

	researchResult := map[string]any{"topic": "input merging", "sources_found": 5}
	analysisResult := map[string]any{
		"outline": map[string]any{"title": "Comprehensive Guide to input merging"},
	}
	writingResult := map[string]any{"content": "# Draft article", "topic": "input merging"}
	seoResult := map[string]any{"optimized_content": "# Optimized article", "seo_score": 80}
	qualityResult := map[string]any{"quality_score": 90, "approved": true}

	engine := NewEngine(Config{Registry: agent.Registry{
		queue.TypeResearch: capture(queue.TypeResearch, researchResult),
		queue.TypeAnalysis: capture(queue.TypeAnalysis, analysisResult),
		queue.TypeWriting:  capture(queue.TypeWriting, writingResult),
		queue.TypeSEO:      capture(queue.TypeSEO, seoResult),
		queue.TypeQuality:  capture(queue.TypeQuality, qualityResult),
	}})

	p, err := engine.CreatePipeline(context.Background(), "input merging")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p.Status != StatusCompleted {
		t.Fatalf("pipeline status = %s, want completed", p.Status)
	}

	// Analyst receives the researcher's full result
	analysisIn := received[queue.TypeAnalysis]
	rd, ok := analysisIn["research_data"].(map[string]any)
	if !ok {
		t.Fatalf("analysis input research_data = %T", analysisIn["research_data"])
	}
	if rd["sources_found"] != 5 {
		t.Errorf("research_data sources_found = %v", rd["sources_found"])
	}

	// Writer receives only the outline field plus its seeded style guide
	writingIn := received[queue.TypeWriting]
	outline, ok := writingIn["outline"].(map[string]any)
	if !ok {
		t.Fatalf("writing input outline = %T", writingIn["outline"])
	}
	if outline["title"] != "Comprehensive Guide to input merging" {
		t.Errorf("outline title = %v", outline["title"])
	}
	if writingIn["style_guide"] != "professional" {
		t.Errorf("writing style_guide = %v", writingIn["style_guide"])
	}
	if _, leaked := writingIn["research_data"]; leaked {
		t.Error("writing input should not carry research_data")
	}

	// SEO receives the draft content string and its seeded topic
	seoIn := received[queue.TypeSEO]
	if seoIn["content"] != "# Draft article" {
		t.Errorf("seo input content = %v", seoIn["content"])
	}
	if seoIn["topic"] != "input merging" {
		t.Errorf("seo input topic = %v", seoIn["topic"])
	}

	// Quality receives the optimized content plus the full SEO result
	qualityIn := received[queue.TypeQuality]
	if qualityIn["content"] != "# Optimized article" {
		t.Errorf("quality input content = %v", qualityIn["content"])
	}
	sd, ok := qualityIn["seo_data"].(map[string]any)
	if !ok {
		t.Fatalf("quality input seo_data = %T", qualityIn["seo_data"])
	}
	if sd["seo_score"] != 80 {
		t.Errorf("seo_data seo_score = %v", sd["seo_score"])
	}
}

func TestGenericInputMergeWithoutBindings(t *testing.T) {
	var (
		mu      sync.Mutex
		betaIn  map[string]any
		alphaIn map[string]any
	)

	engine := NewEngine(Config{
		Registry: agent.Registry{
			"alpha": agent.ExecutorFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
				mu.Lock()
				alphaIn = input
				mu.Unlock()
				return map[string]any{"value": 42}, nil
			}),
			"beta": agent.ExecutorFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
				mu.Lock()
				betaIn = input
				mu.Unlock()
				return map[string]any{"ok": true}, nil
			}),
		},
		Stages: []StageSpec{
			{Type: "alpha", Agent: "agent:alpha:main", Priority: queue.PriorityHigh},
			{Type: "beta", Agent: "agent:beta:main", Priority: queue.PriorityHigh, DependsOn: []queue.TaskType{"alpha"}},
		},
	})

	p, err := engine.CreatePipeline(context.Background(), "generic merge")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, has := alphaIn["alpha_data"]; has {
		t.Error("root stage input should not carry dependency data")
	}

	// Without declared bindings, each completed dependency's whole result
	// lands under "<type>_data".
	ad, ok := betaIn["alpha_data"].(map[string]any)
	if !ok {
		t.Fatalf("beta input alpha_data = %T", betaIn["alpha_data"])
	}
	if ad["value"] != 42 {
		t.Errorf("alpha_data value = %v", ad["value"])
	}
}

func TestRunPersistsAndPublishes(t *testing.T) {
	store, err := persistence.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	bus := events.NewBus()
	sub := bus.SubscribeAll(0)

	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, map[queue.TaskType]map[string]any{
		queue.TypeQuality: {"quality_score": 85, "approved": true},
	}, nil)
	engine := NewEngine(Config{Registry: registry, Store: store, Bus: bus})

	ctx := context.Background()
	p, err := engine.CreatePipeline(ctx, "durable run")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(ctx, p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	bus.Close()

	// Pipeline record reflects the terminal state
	rec, err := store.GetPipeline(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if rec.Status != string(StatusCompleted) {
		t.Errorf("stored status = %s, want completed", rec.Status)
	}
	if rec.Iterations != 5 {
		t.Errorf("stored iterations = %d, want 5", rec.Iterations)
	}
	if rec.CompletedAt == nil {
		t.Error("stored CompletedAt is nil")
	}

	// Snapshot holds all five tasks, completed, in creation order
	snap, err := store.LoadSnapshot(ctx, p.ID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(snap.Tasks) != 5 {
		t.Fatalf("snapshot has %d tasks, want 5", len(snap.Tasks))
	}
	wantPrefixes := []string{"research-", "analysis-", "writing-", "seo-", "quality-"}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(snap.Order[i], prefix) {
			t.Errorf("snapshot order[%d] = %s, want prefix %s", i, snap.Order[i], prefix)
		}
	}
	for id, task := range snap.Tasks {
		if task.Status != queue.StatusCompleted {
			t.Errorf("snapshot task %s status = %s, want completed", id, task.Status)
		}
	}

	// History: created, 5 started + 5 completed, finished
	history, err := store.GetHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 12 {
		t.Fatalf("history has %d events, want 12", len(history))
	}
	if history[0].EventType != events.EventTypePipelineCreated {
		t.Errorf("first history event = %s, want pipeline.created", history[0].EventType)
	}
	if last := history[len(history)-1]; last.EventType != events.EventTypePipelineFinished || last.Detail != string(StatusCompleted) {
		t.Errorf("last history event = %s/%s", last.EventType, last.Detail)
	}

	// Bus saw the same story
	var (
		started  []string
		finished int
		created  int
	)
	for ev := range sub {
		switch e := ev.(type) {
		case events.TaskStartedEvent:
			started = append(started, string(e.Type))
		case events.PipelineFinishedEvent:
			finished++
			if e.Status != string(StatusCompleted) {
				t.Errorf("finished event status = %s", e.Status)
			}
		case events.PipelineCreatedEvent:
			created++
		}
	}
	wantOrder := []string{"research", "analysis", "writing", "seo", "quality"}
	if len(started) != 5 {
		t.Fatalf("saw %d task.started events, want 5", len(started))
	}
	for i, typ := range wantOrder {
		if started[i] != typ {
			t.Errorf("started[%d] = %s, want %s", i, started[i], typ)
		}
	}
	if created != 1 || finished != 1 {
		t.Errorf("created/finished events = %d/%d, want 1/1", created, finished)
	}
}

func TestReportFromRecord(t *testing.T) {
	store, err := persistence.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	var (
		order []string
		mu    sync.Mutex
	)
	registry := recordingRegistry(&order, &mu, map[queue.TaskType]map[string]any{
		queue.TypeQuality: {"quality_score": 85, "approved": true},
	}, nil)
	engine := NewEngine(Config{Registry: registry, Store: store})

	ctx := context.Background()
	p, err := engine.CreatePipeline(ctx, "rehydrated report")
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	if err := engine.Run(ctx, p); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec, err := store.GetPipeline(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	tasks, err := store.ListTasks(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	report := ReportFromRecord(rec, tasks)
	live := engine.Report(p)

	if report.PipelineID != live.PipelineID || report.Topic != live.Topic {
		t.Errorf("identity mismatch: %s/%s vs %s/%s", report.PipelineID, report.Topic, live.PipelineID, live.Topic)
	}
	if report.Status != live.Status || report.Iterations != live.Iterations {
		t.Errorf("status/iterations mismatch: %s/%d vs %s/%d", report.Status, report.Iterations, live.Status, live.Iterations)
	}
	if len(report.Tasks) != len(live.Tasks) {
		t.Fatalf("task count mismatch: %d vs %d", len(report.Tasks), len(live.Tasks))
	}
	for typ, tr := range live.Tasks {
		stored, ok := report.Tasks[typ]
		if !ok {
			t.Errorf("rehydrated report missing %s", typ)
			continue
		}
		if stored.ID != tr.ID || stored.Status != tr.Status {
			t.Errorf("%s mismatch: %s/%s vs %s/%s", typ, stored.ID, stored.Status, tr.ID, tr.Status)
		}
	}
	if approved, _ := report.Tasks[queue.TypeQuality].Result["approved"].(bool); !approved {
		t.Error("rehydrated quality result lost approval flag")
	}
}
