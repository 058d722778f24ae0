package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "columns.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const planDoc = `name: orders
description: order feed columns
author: data-eng
date: 2024-05-01
columns:
  amount:
    dtype: Float64
    aliases: [amt]
    normalization: [numeric_float]
  code:
    dtype: string
    normalization:
      - text:
          strip: both
  label:
    dtype: string
    normalization:
      - text:
          strip: both
      - categorical
`

const badMethodDoc = `name: orders
description: order feed columns
author: data-eng
date: 2024-05-01
columns:
  a:
    dtype: object
    normalization: [polish]
`

const aliasClashDoc = `name: orders
description: order feed columns
author: data-eng
date: 2024-05-01
columns:
  a:
    dtype: object
    aliases: [x]
  b:
    dtype: object
    aliases: [x]
`

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{"missing_config", nil, "missing required -config"},
		{"blank_config", []string{"-config", "  "}, "missing required -config"},
		{"unknown_flag", []string{"-nope"}, "flag provided but not defined"},
		{"help_prints_usage", []string{"-h"}, "Usage of confcheck"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := run(tc.args, &stdout, &stderr)
			if code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRun_CleanDocumentSummary(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, planDoc)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "3 columns, 0 issues") {
		t.Fatalf("stdout=%q, want the summary line", stdout.String())
	}
	if strings.Contains(stderr.String(), "issue:") {
		t.Fatalf("stderr=%q, want no issues", stderr.String())
	}
}

func TestRun_PlanOutput(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, planDoc)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", path, "-plan"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
	}

	// Step groups in first-appearance order; code and label share the
	// strip step and land in one group.
	want := []string{
		"numeric_float -> amount",
		"text: ('strip', 'both') -> code, label",
		"categorical -> label",
	}
	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if len(lines) != len(want)+1 { // plan lines plus summary
		t.Fatalf("stdout=%q, want %d plan lines plus summary", stdout.String(), len(want))
	}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("plan line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestRun_PipelinesOutput(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, planDoc)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", path, "-pipelines"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
	}

	// Full-pipeline batches: code and label no longer share a group
	// because label has a second step.
	want := []string{
		"numeric_float -> amount",
		"text: ('strip', 'both') -> code",
		"text: ('strip', 'both') | categorical -> label",
	}
	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if len(lines) != len(want)+1 {
		t.Fatalf("stdout=%q, want %d pipeline lines plus summary", stdout.String(), len(want))
	}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("pipeline line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestRun_UnknownMethod_StrictVsPermissive(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, badMethodDoc)

	t.Run("permissive_reports_and_passes", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", path}, &stdout, &stderr)
		if code != 0 {
			t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "polish") {
			t.Fatalf("stderr=%q, want the unknown method reported", stderr.String())
		}
		if !strings.Contains(stdout.String(), "1 columns, 1 issues") {
			t.Fatalf("stdout=%q, want the summary line", stdout.String())
		}
	})

	t.Run("strict_fails", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", path, "-strict"}, &stdout, &stderr)
		if code != 1 {
			t.Fatalf("exit code=%d, want 1; stderr=%q", code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "issue:") {
			t.Fatalf("stderr=%q, want the issue listed", stderr.String())
		}
	})
}

func TestRun_AliasClash_StrictVsPermissive(t *testing.T) {
	t.Parallel()

	path := writeDoc(t, aliasClashDoc)

	t.Run("permissive_reports_conflict", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", path}, &stdout, &stderr)
		if code != 0 {
			t.Fatalf("exit code=%d, want 0; stderr=%q", code, stderr.String())
		}
		if !strings.Contains(stderr.String(), `alias "x" claimed by columns`) {
			t.Fatalf("stderr=%q, want the alias conflict reported", stderr.String())
		}
	})

	t.Run("strict_refuses_to_load", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", path, "-strict"}, &stdout, &stderr)
		if code != 1 {
			t.Fatalf("exit code=%d, want 1; stderr=%q", code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "already claimed") {
			t.Fatalf("stderr=%q, want the strict load failure", stderr.String())
		}
	})
}

func TestRun_LoadFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing_file", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}, &stdout, &stderr)
		if code != 1 {
			t.Fatalf("exit code=%d, want 1; stderr=%q", code, stderr.String())
		}
	})

	t.Run("malformed_document", func(t *testing.T) {
		t.Parallel()

		path := writeDoc(t, "columns: [not, a, mapping]")
		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", path}, &stdout, &stderr)
		if code != 1 {
			t.Fatalf("exit code=%d, want 1; stderr=%q", code, stderr.String())
		}
	})
}
