package normalizer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"jobs-etl/internal/config"

	"github.com/sirupsen/logrus"
)

// Normalizer turns the collector's raw output file into the record file the
// uploader reads. Any error is fatal for the pipeline run.
type Normalizer interface {
	Normalize(ctx context.Context, inPath, outPath string) error
}

// New returns the normalizer selected by cfg.Mode.
func New(cfg config.NormalizerConfig) (Normalizer, error) {
	switch cfg.Mode {
	case "", "builtin":
		return Builtin{}, nil
	case "command":
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("normalizer command is empty")
		}
		return &Command{Argv: cfg.Command}, nil
	default:
		return nil, fmt.Errorf("unsupported normalizer mode: %s", cfg.Mode)
	}
}

// Command runs an external formatter as `argv... <in> <out>`. The program's
// output is forwarded to the logger line by line.
type Command struct {
	Argv []string
}

func (c *Command) Normalize(ctx context.Context, inPath, outPath string) error {
	args := append(append([]string{}, c.Argv[1:]...), inPath, outPath)
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Argv[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go forward(&wg, stdout, logrus.InfoLevel)
	go forward(&wg, stderr, logrus.WarnLevel)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w", c.Argv[0], err)
	}
	return nil
}

func forward(wg *sync.WaitGroup, r io.Reader, level logrus.Level) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logrus.StandardLogger().Logf(level, "[normalizer] %s", sc.Text())
	}
}
