// Package integration provides end-to-end tests for the full matching pipeline.
package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cohortlab/tssd/internal/dataset"
	"github.com/cohortlab/tssd/internal/history"
	"github.com/cohortlab/tssd/internal/match"
	"github.com/cohortlab/tssd/internal/models"
	"github.com/cohortlab/tssd/internal/sentiment"
)

func writeHistoryFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runPipeline(t *testing.T, caseFiles, controlFiles []string, workers int, params match.Params) []models.OutputRecord {
	t.Helper()
	filter, err := sentiment.NewTermFilterFromPatterns([]string{`diagnosed with`}, nil)
	if err != nil {
		t.Fatal(err)
	}
	reader := history.NewReader(filter, workers)
	ctx := context.Background()

	controlDocs, controlIndex, err := reader.ReadGroup(ctx, controlFiles)
	if err != nil {
		t.Fatal(err)
	}
	caseDocs, caseIndex, err := reader.ReadGroup(ctx, caseFiles)
	if err != nil {
		t.Fatal(err)
	}

	matches := match.New(params).Match(caseDocs, controlDocs, caseIndex.IDs())
	return dataset.Assemble(caseIndex, matches, controlIndex)
}

func TestIntegration_MatchPipeline(t *testing.T) {
	dir := t.TempDir()
	controls := writeHistoryFile(t, dir, "controls.json", `{
		"u1": {"posts": [[100, "I love my life"]], "hashtags": []},
		"u2": {"posts": [[200, "cats are great"]], "hashtags": []}
	}`)
	cases := writeHistoryFile(t, dir, "cases.json", `{
		"u3": {"posts": [[300, "I love my life so much"]], "hashtags": []}
	}`)

	records := runPipeline(t, []string{cases}, []string{controls}, 2,
		match.Params{Controls: 1, MinSimilarity: -1, MinAcceptable: 1})

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "u3" || records[0].Label[0] != models.LabelCase {
		t.Errorf("expected first record to be case u3, got %s %v", records[0].ID, records[0].Label)
	}
	if records[1].ID != "u1" || records[1].Label[0] != models.LabelControl {
		t.Errorf("expected matched control u1, got %s %v", records[1].ID, records[1].Label)
	}
	if len(records[0].Posts) != 1 || records[0].Posts[0].Text != "i love my life so much" {
		t.Errorf("unexpected case posts: %+v", records[0].Posts)
	}
}

func TestIntegration_PositivePostsScrubbed(t *testing.T) {
	dir := t.TempDir()
	controls := writeHistoryFile(t, dir, "controls.json", `{
		"u1": {"posts": [[100, "just a normal day"]], "hashtags": []}
	}`)
	cases := writeHistoryFile(t, dir, "cases.json", `{
		"u2": {"posts": [[100, "I was diagnosed with something"], [200, "just a normal day too"]], "hashtags": []}
	}`)

	records := runPipeline(t, []string{cases}, []string{controls}, 1,
		match.Params{Controls: 1, MinSimilarity: -1, MinAcceptable: 1})

	if len(records) == 0 {
		t.Fatal("expected records")
	}
	for _, p := range records[0].Posts {
		if bytes.Contains([]byte(p.Text), []byte("diagnosed")) {
			t.Errorf("indicator post survived scrubbing: %q", p.Text)
		}
	}
	if len(records[0].Posts) != 1 {
		t.Errorf("expected 1 surviving post, got %d", len(records[0].Posts))
	}
}

func TestIntegration_DeterministicAcrossPoolSizes(t *testing.T) {
	dir := t.TempDir()
	controls := writeHistoryFile(t, dir, "controls.json", `{
		"c1": {"posts": [[1, "the weather is nice today"], [2, "going for a run"]], "hashtags": []},
		"c2": {"posts": [[1, "stocks went up again"], [2, "market news all day"]], "hashtags": []},
		"c3": {"posts": [[1, "nice weather for a run today"]], "hashtags": []},
		"c4": {"posts": [[1, "cooking dinner tonight"]], "hashtags": []}
	}`)
	cases := writeHistoryFile(t, dir, "cases.json", `{
		"k1": {"posts": [[1, "the weather today is really nice"]], "hashtags": []},
		"k2": {"posts": [[1, "watching market news"]], "hashtags": []}
	}`)

	params := match.Params{Controls: 2, MinSimilarity: -1, MinAcceptable: 1}
	baseline := runPipeline(t, []string{cases}, []string{controls}, 1, params)
	for _, workers := range []int{2, 4, 8} {
		for run := 0; run < 3; run++ {
			got := runPipeline(t, []string{cases}, []string{controls}, workers, params)
			if !reflect.DeepEqual(got, baseline) {
				t.Fatalf("workers=%d run=%d: output differs from baseline", workers, run)
			}
		}
	}
}

func TestIntegration_NDJSONOutput(t *testing.T) {
	dir := t.TempDir()
	controls := writeHistoryFile(t, dir, "controls.json", `{
		"u1": {"posts": [[100, "hello world"]], "hashtags": []}
	}`)
	cases := writeHistoryFile(t, dir, "cases.json", `{
		"u2": {"posts": [[100, "hello there world"]], "hashtags": []}
	}`)

	records := runPipeline(t, []string{cases}, []string{controls}, 1,
		match.Params{Controls: 1, MinSimilarity: -1, MinAcceptable: 1})

	var buf bytes.Buffer
	if err := dataset.WriteNDJSON(&buf, records); err != nil {
		t.Fatal(err)
	}
	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var rec models.OutputRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if len(rec.Label) != 1 {
			t.Errorf("line %d: expected exactly one label, got %v", lines+1, rec.Label)
		}
		lines++
	}
	if lines != len(records) {
		t.Errorf("expected %d lines, got %d", len(records), lines)
	}
}
