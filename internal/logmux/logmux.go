// Package logmux multiplexes a self-test run's pod logs and cluster events
// onto one ordered, pod-tagged output: one goroutine per probe pod following
// its log stream, one goroutine watching cluster events filtered to the
// test's pods, and a single printer goroutine draining everything.
package logmux

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// Line is one tagged unit of output: a pod name and a single line of text,
// never split across another pod's line.
type Line struct {
	PodName string
	Text    string
}

// channelCapacity bounds the log channel to cap memory rather than leaving
// it truly unbounded.
const channelCapacity = 64 * 1024

// eventReasonAllowlist is the set of Normal-type event reasons still worth
// surfacing even though they aren't Warning/Error.
var eventReasonAllowlist = map[string]bool{
	"Pulling":          true,
	"Pulled":           true,
	"Created":          true,
	"Started":          true,
	"Failed":           true,
	"Scheduled":        true,
	"FailedScheduling": true,
	"FailedMount":      true,
}

// palette is the printer's rotating 6-color ANSI palette for pod-name
// coloring. Presentation-only; Printer.NoColor disables it.
var palette = []string{
	"\x1b[36m", // cyan
	"\x1b[33m", // yellow
	"\x1b[32m", // green
	"\x1b[35m", // magenta
	"\x1b[34m", // blue
	"\x1b[96m", // bright cyan
}

const colorReset = "\x1b[0m"

// Supervisor owns one test run's log/event multiplexing: it discovers the
// test's pods by label selector, spawns a follower per pod plus one event
// watcher, and funnels everything through a single channel to a printer.
type Supervisor struct {
	Client    kubernetes.Interface
	Namespace string
	TestID    string // short (8-char) test id, matches the test-id label value

	lines chan Line
	wg    sync.WaitGroup
}

// NewSupervisor constructs a Supervisor for one test run. The channel is
// created here so Printer can start draining before Run's goroutines are
// spawned.
func NewSupervisor(client kubernetes.Interface, namespace, testID string) *Supervisor {
	return &Supervisor{
		Client:    client,
		Namespace: namespace,
		TestID:    testID,
		lines:     make(chan Line, channelCapacity),
	}
}

// Lines exposes the supervisor's output channel for a Printer to drain. The
// channel closes once Run's followers and watcher have all exited.
func (s *Supervisor) Lines() <-chan Line {
	return s.lines
}

// Run discovers the test's pods (label selector test-id=<TestID>) and
// spawns one follower goroutine per pod plus one event-watcher goroutine,
// all writing onto the shared channel. It blocks until ctx is canceled or
// every goroutine's underlying stream ends, then closes the channel.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.lines)

	pods, err := s.Client.CoreV1().Pods(s.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("test-id=%s", s.TestID),
	})
	if err != nil {
		return fmt.Errorf("list test pods: %w", err)
	}

	podNames := make(map[string]bool, len(pods.Items))
	for _, p := range pods.Items {
		podNames[p.Name] = true
	}

	s.wg.Add(1)
	go s.watchEvents(ctx, podNames)

	for _, p := range pods.Items {
		s.wg.Add(1)
		go s.followPod(ctx, p.Name)
	}

	s.wg.Wait()
	return nil
}

// followPod opens a streaming log read (follow=true, tail=100) for one pod
// and forwards every line it produces, preserving that pod's arrival order.
func (s *Supervisor) followPod(ctx context.Context, podName string) {
	defer s.wg.Done()

	tail := int64(100)
	req := s.Client.CoreV1().Pods(s.Namespace).GetLogs(podName, &corev1.PodLogOptions{
		Follow:    true,
		TailLines: &tail,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		s.emit(podName, fmt.Sprintf("could not stream logs: %v", err))
		return
	}
	defer stream.Close()

	s.emit(podName, fmt.Sprintf("logs starting for %s", podName))

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.emit(podName, scanner.Text())
	}
}

// watchEvents watches every event in the namespace and forwards those
// involving one of the test's pods, filtered per eventReasonAllowlist.
func (s *Supervisor) watchEvents(ctx context.Context, podNames map[string]bool) {
	defer s.wg.Done()

	w, err := s.Client.CoreV1().Events(s.Namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-w.ResultChan():
			if !ok {
				return
			}
			s.handleEvent(res, podNames)
		}
	}
}

func (s *Supervisor) handleEvent(res watch.Event, podNames map[string]bool) {
	if res.Type != watch.Added && res.Type != watch.Modified {
		return
	}
	ev, ok := res.Object.(*corev1.Event)
	if !ok {
		return
	}
	podName := ev.InvolvedObject.Name
	if !podNames[podName] {
		return
	}

	eventType := ev.Type
	if eventType == "" {
		eventType = corev1.EventTypeNormal
	}
	shouldShow := eventType != corev1.EventTypeNormal || eventReasonAllowlist[ev.Reason]
	if !shouldShow {
		return
	}

	var formatted string
	if eventType == corev1.EventTypeNormal {
		formatted = fmt.Sprintf("EVENT: %s - %s", ev.Reason, ev.Message)
	} else {
		formatted = fmt.Sprintf("EVENT [%s]: %s - %s", eventType, ev.Reason, ev.Message)
	}
	s.emit(podName, formatted)
}

func (s *Supervisor) emit(podName, text string) {
	select {
	case s.lines <- Line{PodName: podName, Text: text}:
	default:
		// channel at capacity: drop rather than block a follower forever.
	}
}

// Printer drains a Supervisor's line channel and writes each line tagged
// with a stable, rotating color per pod name. Coloring is presentation-only
// — set NoColor for machine consumers or non-terminal output.
type Printer struct {
	Out     writer
	NoColor bool

	mu      sync.Mutex
	colors  map[string]string
	nextIdx int
}

// writer is the minimal io.Writer-shaped dependency Printer needs, declared
// locally to avoid importing io just for this.
type writer interface {
	Write(p []byte) (n int, err error)
}

// NewPrinter builds a Printer writing to out.
func NewPrinter(out writer, noColor bool) *Printer {
	return &Printer{Out: out, NoColor: noColor, colors: map[string]string{}}
}

// Drain reads every Line off ch until it closes, writing "[pod] text" to
// Out. It returns once the channel is closed, i.e. once every follower and
// the event watcher have exited or been abandoned.
func (p *Printer) Drain(ch <-chan Line) {
	for line := range ch {
		tag := line.PodName
		if !p.NoColor {
			tag = p.colorFor(line.PodName) + line.PodName + colorReset
		}
		fmt.Fprintf(p.Out, "[%s] %s\n", tag, line.Text)
	}
}

func (p *Printer) colorFor(podName string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.colors[podName]
	if !ok {
		c = palette[p.nextIdx%len(palette)]
		p.nextIdx++
		p.colors[podName] = c
	}
	return c
}
