// Package testing holds the browser harness used by end-to-end tests: a
// headless Chrome in Docker driven through chromedp, and actions that wait
// for live edits to reach the page.
package testing

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	dockerImage = "chromedp/headless-shell:latest"

	// DefaultDebugPort is where headless-shell listens; with host
	// networking on Linux it cannot be changed
	DefaultDebugPort = 9222
)

// GetFreePort asks the kernel for a free open port that is ready to use
func GetFreePort() (port int, err error) {
	var a *net.TCPAddr
	if a, err = net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		var l *net.TCPListener
		if l, err = net.ListenTCP("tcp", a); err == nil {
			defer l.Close()
			return l.Addr().(*net.TCPAddr).Port, nil
		}
	}
	return
}

// GetChromeTestURL returns the URL Chrome (in Docker) uses to reach a server
// on the host: localhost with host networking on Linux, otherwise
// host.docker.internal
func GetChromeTestURL(port int) string {
	portStr := fmt.Sprintf("%d", port)
	if runtime.GOOS == "linux" {
		return "http://localhost:" + portStr
	}
	return "http://host.docker.internal:" + portStr
}

// StartDockerChrome starts the headless-shell container and waits for its
// debugging endpoint. The test is skipped when Docker is not available.
func StartDockerChrome(t *testing.T, debugPort int) *exec.Cmd {
	t.Helper()

	if err := exec.Command("docker", "version").Run(); err != nil {
		t.Skip("Docker not available, skipping E2E test")
	}

	if err := exec.Command("docker", "image", "inspect", dockerImage).Run(); err != nil {
		t.Logf("Pulling %s...", dockerImage)
		pullCmd := exec.Command("docker", "pull", dockerImage)
		if err := pullCmd.Start(); err != nil {
			t.Fatalf("Failed to start docker pull: %v", err)
		}

		pullDone := make(chan error, 1)
		go func() {
			pullDone <- pullCmd.Wait()
		}()

		select {
		case err := <-pullDone:
			if err != nil {
				t.Fatalf("Failed to pull Docker image: %v", err)
			}
		case <-time.After(60 * time.Second):
			pullCmd.Process.Kill()
			t.Fatal("Docker pull timed out after 60 seconds")
		}
	}

	var cmd *exec.Cmd
	containerName := containerName(debugPort)
	if runtime.GOOS == "linux" {
		cmd = exec.Command("docker", "run", "--rm",
			"--network", "host",
			"--name", containerName,
			dockerImage,
		)
	} else {
		cmd = exec.Command("docker", "run", "--rm",
			"-p", fmt.Sprintf("%d:9222", debugPort),
			"--name", containerName,
			"--add-host", "host.docker.internal:host-gateway",
			dockerImage,
		)
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start Chrome Docker container: %v", err)
	}

	versionURL := fmt.Sprintf("http://localhost:%d/json/version", debugPort)
	for i := 0; i < 60; i++ {
		resp, err := http.Get(versionURL)
		if err == nil {
			resp.Body.Close()
			return cmd
		}
		time.Sleep(500 * time.Millisecond)
	}

	cmd.Process.Kill()
	t.Fatal("Chrome failed to start within 30 seconds")
	return nil
}

// StopDockerChrome stops the container started by StartDockerChrome
func StopDockerChrome(t *testing.T, cmd *exec.Cmd, debugPort int) {
	t.Helper()

	name := containerName(debugPort)
	output, _ := exec.Command("docker", "ps", "-a", "-q", "-f", "name="+name).Output()

	if len(output) > 0 {
		stopDone := make(chan error, 1)
		go func() {
			stopDone <- exec.Command("docker", "stop", "-t", "2", name).Run()
		}()

		select {
		case err := <-stopDone:
			if err != nil {
				t.Logf("Warning: Failed to stop Docker container: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Logf("Warning: docker stop timed out, forcing kill")
			exec.Command("docker", "kill", name).Run()
		}
	}

	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func containerName(debugPort int) string {
	return fmt.Sprintf("livesync-e2e-%d", debugPort)
}

// NewBrowserContext connects chromedp to the Chrome behind debugPort
func NewBrowserContext(ctx context.Context, debugPort int) (context.Context, context.CancelFunc) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, fmt.Sprintf("ws://localhost:%d", debugPort))
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	return browserCtx, func() {
		browserCancel()
		allocCancel()
	}
}

// Console collects the page's console output
type Console struct {
	mu       sync.Mutex
	messages []string
}

// CaptureConsole starts recording console calls made in ctx's target
func CaptureConsole(ctx context.Context) *Console {
	c := &Console{}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if ev, ok := ev.(*cdpruntime.EventConsoleAPICalled); ok {
			var parts []string
			for _, arg := range ev.Args {
				parts = append(parts, strings.Trim(string(arg.Value), `"`))
			}
			c.mu.Lock()
			c.messages = append(c.messages, string(ev.Type)+": "+strings.Join(parts, " "))
			c.mu.Unlock()
		}
	})
	return c
}

// Messages returns everything logged so far
func (c *Console) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

// Contains reports whether any message contains s
func (c *Console) Contains(s string) bool {
	for _, m := range c.Messages() {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

// WaitForText polls until the element matching selector has text, so tests
// can wait for a pushed edit without sleeping
func WaitForText(selector, text string, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		start := time.Now()
		var current string
		for {
			err := chromedp.Evaluate(fmt.Sprintf(`(() => {
				const el = document.querySelector(%q);
				return el ? el.textContent : "";
			})()`, selector), &current).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", selector, err)
			}
			if current == text {
				return nil
			}
			if time.Since(start) > timeout {
				return fmt.Errorf("timeout waiting for %s to read %q, last saw %q", selector, text, current)
			}
			time.Sleep(10 * time.Millisecond)
		}
	})
}

// ValidateInstrumented checks that every element under selector carries
// the identifier attribute
func ValidateInstrumented(selector, attr string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var missing []string
		err := chromedp.Evaluate(fmt.Sprintf(`(() => {
			const root = document.querySelector(%q);
			if (!root) return ["<missing root>"];
			return [root, ...root.querySelectorAll("*")]
				.filter((el) => !el.hasAttribute(%q) && !el.hasAttribute("data-livesync"))
				.map((el) => el.tagName.toLowerCase());
		})()`, selector, attr), &missing).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", selector, err)
		}
		if len(missing) > 0 {
			return fmt.Errorf("elements without %s: %s", attr, strings.Join(missing, ", "))
		}
		return nil
	})
}
