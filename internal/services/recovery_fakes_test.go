package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/platformbuilds/recovery-core/internal/models"
)

// fakeProber answers availability from a fixed map. URL probes fail when the
// URL is listed in urlErrors.
type fakeProber struct {
	mu        sync.Mutex
	available map[string]bool
	urlErrors map[string]error
	probed    []string
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		available: map[string]bool{"postgresql": true, "api-server": true, "redis": true},
		urlErrors: make(map[string]error),
	}
}

func (p *fakeProber) setAvailable(service string, up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available[service] = up
}

func (p *fakeProber) IsAvailable(ctx context.Context, service string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, service)
	return p.available[service]
}

func (p *fakeProber) ProbeURL(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, url)
	return p.urlErrors[url]
}

// fakeExecutor records invocations as "method:target" and fails any call
// whose key is present in failures.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{failures: make(map[string]error)}
}

func (e *fakeExecutor) failOn(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[key] = fmt.Errorf("injected failure for %s", key)
}

func (e *fakeExecutor) run(key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, key)
	if err := e.failures[key]; err != nil {
		return "", err
	}
	return "ok: " + key, nil
}

func (e *fakeExecutor) callCount(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (e *fakeExecutor) RestartService(ctx context.Context, target string) (string, error) {
	return e.run("restart_service:" + target)
}

func (e *fakeExecutor) ClearCache(ctx context.Context, target string) (string, error) {
	return e.run("clear_cache:" + target)
}

func (e *fakeExecutor) ResetConnections(ctx context.Context, target string) (string, error) {
	return e.run("reset_connections:" + target)
}

func (e *fakeExecutor) ScaleResources(ctx context.Context, target string, params map[string]string) (string, error) {
	return e.run("scale_resources:" + target)
}

func (e *fakeExecutor) CleanupLogs(ctx context.Context, target string) (string, error) {
	return e.run("cleanup_logs:" + target)
}

func (e *fakeExecutor) CleanupTemp(ctx context.Context, target string) (string, error) {
	return e.run("cleanup_temp:" + target)
}

func (e *fakeExecutor) GarbageCollect(ctx context.Context) (string, error) {
	return e.run("garbage_collect")
}

func (e *fakeExecutor) IsolateComponent(ctx context.Context, target string) (string, error) {
	return e.run("isolate_component:" + target)
}

func (e *fakeExecutor) ExecuteScript(ctx context.Context, target string, params map[string]string) (string, error) {
	return e.run("execute_script:" + params["script"])
}

// fakeNotifier records deliveries instead of calling external integrations.
type fakeNotifier struct {
	mu         sync.Mutex
	notified   []string
	broadcasts int
}

func (n *fakeNotifier) Notify(ctx context.Context, member models.TeamMember, notification *Notification) models.CommunicationStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, member.Name)
	return models.CommunicationSent
}

func (n *fakeNotifier) Broadcast(ctx context.Context, notification *Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts++
	return nil
}

func (n *fakeNotifier) notifiedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}
