// ./internal/arch/arch_test.go
package arch

import (
	"bytes"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"testing"
)

type pkg struct {
	ImportPath string
	Imports    []string
	Standard   bool
}

func TestImportBoundaries(t *testing.T) {
	cmd := exec.Command("go", "list", "-json", "phredmean/...")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("go list: %v", err)
	}
	dec := json.NewDecoder(&out)

	outer := []string{
		"phredmean/internal/appcore", "phredmean/internal/app",
		"phredmean/internal/cli", "phredmean/cmd/",
	}
	bans := map[string][]string{
		// Domain packages know nothing of orchestration or presentation.
		"phredmean/internal/fastq": append([]string{
			"phredmean/internal/plan", "phredmean/internal/stats", "phredmean/internal/engine",
			"phredmean/internal/pipeline", "phredmean/internal/queue", "phredmean/internal/writers",
			"phredmean/internal/output",
		}, outer...),
		"phredmean/internal/stats": append([]string{
			"phredmean/internal/engine", "phredmean/internal/pipeline", "phredmean/internal/queue",
			"phredmean/internal/writers", "phredmean/internal/output",
		}, outer...),
		"phredmean/internal/plan": append([]string{
			"phredmean/internal/engine", "phredmean/internal/pipeline", "phredmean/internal/queue",
			"phredmean/internal/writers", "phredmean/internal/output",
		}, outer...),
		"phredmean/internal/engine": append([]string{
			"phredmean/internal/pipeline", "phredmean/internal/queue",
			"phredmean/internal/writers", "phredmean/internal/output",
		}, outer...),
		"phredmean/internal/pipeline": append([]string{
			"phredmean/internal/writers", "phredmean/internal/output",
		}, outer...),
		"phredmean/internal/queue": append([]string{
			"phredmean/internal/pipeline", "phredmean/internal/writers", "phredmean/internal/output",
		}, outer...),
		"phredmean/internal/writers": append([]string{"phredmean/internal/pipeline"}, outer...),
		"phredmean/internal/output":  append([]string{"phredmean/internal/pipeline"}, outer...),
		// The wire schema stands alone.
		"phredmean/pkg/api": {"phredmean/internal/"},
	}

	var violations []string
	for {
		var p pkg
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.HasPrefix(p.ImportPath, "phredmean/") {
			continue
		}
		imp := p.ImportPath
		for prefix, forbidden := range bans {
			if imp != prefix && !strings.HasPrefix(imp, prefix+"/") {
				continue
			}
			for _, dep := range p.Imports {
				if !strings.HasPrefix(dep, "phredmean/") {
					continue
				}
				for _, ban := range forbidden {
					if strings.HasPrefix(dep, ban) && dep != imp {
						violations = append(violations, imp+" → "+dep)
					}
				}
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n  %s", strings.Join(violations, "\n  "))
	}
}
