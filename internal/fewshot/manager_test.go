package fewshot

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/detection"
	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/observability/metrics"
)

type stubRecognizer struct {
	summary detection.Summary
	err     error
}

func (s *stubRecognizer) Count(context.Context, image.Image, string) (detection.Summary, error) {
	return s.summary, s.err
}

func newTestManager(t *testing.T, recognizer Recognizer) *Manager {
	t.Helper()

	settings := conf.Default()
	settings.Main.DataDir = t.TempDir()
	settings.Output.SQLite.Path = filepath.Join(settings.Main.DataDir, "test.db")
	require.NoError(t, settings.EnsureDirectories())

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	m, err := metrics.NewFewShotMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	mgr, err := New(settings, store, recognizer, m)
	require.NoError(t, err)
	return mgr
}

func trainingImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 32))))
	return buf.Bytes()
}

func trainingImages(t *testing.T, n int) [][]byte {
	images := make([][]byte, n)
	for i := range images {
		images[i] = trainingImage(t)
	}
	return images
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "red bicycle", NormalizeName("  Red   Bicycle "))
	assert.Equal(t, "café chair", NormalizeName("CAFÉ\tCHAIR"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestLearnRequiresMinimumImages(t *testing.T) {
	mgr := newTestManager(t, &stubRecognizer{})

	_, err := mgr.Learn(context.Background(), "red bicycle", trainingImages(t, 2))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	info, err := mgr.Learn(context.Background(), "red bicycle", trainingImages(t, 3))
	require.NoError(t, err)
	assert.Equal(t, "red bicycle", info.Name)
	assert.Equal(t, 3, info.TrainingImages)
	assert.True(t, mgr.IsLearned("Red Bicycle"))
}

func TestLearnRejectsBuiltinAndEmptyNames(t *testing.T) {
	mgr := newTestManager(t, &stubRecognizer{})

	_, err := mgr.Learn(context.Background(), "Car", trainingImages(t, 3))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = mgr.Learn(context.Background(), "   ", trainingImages(t, 3))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestLearnRejectsBlocklistedName(t *testing.T) {
	mgr := newTestManager(t, &stubRecognizer{})

	_, err := mgr.Learn(context.Background(), "toy tank", trainingImages(t, 3))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategorySafety))
	assert.False(t, mgr.IsLearned("toy tank"))
}

func TestLearnRejectsUndecodableImage(t *testing.T) {
	mgr := newTestManager(t, &stubRecognizer{})

	images := trainingImages(t, 3)
	images[1] = []byte("definitely not an image")
	_, err := mgr.Learn(context.Background(), "red bicycle", images)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestListSortedAndInfo(t *testing.T) {
	mgr := newTestManager(t, &stubRecognizer{})

	for _, name := range []string{"zebra print mug", "antique lamp"} {
		_, err := mgr.Learn(context.Background(), name, trainingImages(t, 3))
		require.NoError(t, err)
	}

	list := mgr.List()
	require.Len(t, list, 2)
	assert.Equal(t, "antique lamp", list[0].Name)
	assert.Equal(t, "zebra print mug", list[1].Name)

	info, err := mgr.Info("Antique Lamp")
	require.NoError(t, err)
	assert.Equal(t, 3, info.TrainingImages)

	_, err = mgr.Info("nonexistent")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestCountLearnedAddsTimePenalty(t *testing.T) {
	recognizer := &stubRecognizer{summary: detection.Summary{Count: 2, Confidence: 0.7}}
	mgr := newTestManager(t, recognizer)

	_, err := mgr.Learn(context.Background(), "red bicycle", trainingImages(t, 4))
	require.NoError(t, err)

	summary, info, penalty, err := mgr.CountLearned(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "red bicycle")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 4, info.TrainingImages)
	assert.Equal(t, 500*time.Millisecond+4*100*time.Millisecond, penalty)
}

func TestTimePenaltyCapped(t *testing.T) {
	assert.Equal(t, 2*time.Second, timePenalty(50))
	assert.Equal(t, 800*time.Millisecond, timePenalty(3))
}

func TestDeleteThenCountIsNotFound(t *testing.T) {
	mgr := newTestManager(t, &stubRecognizer{summary: detection.Summary{Count: 1}})

	_, err := mgr.Learn(context.Background(), "red bicycle", trainingImages(t, 3))
	require.NoError(t, err)

	require.NoError(t, mgr.Delete("red bicycle"))
	assert.False(t, mgr.IsLearned("red bicycle"))

	_, _, _, err = mgr.CountLearned(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), "red bicycle")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	err = mgr.Delete("red bicycle")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestRegistrySurvivesRestart(t *testing.T) {
	settings := conf.Default()
	settings.Main.DataDir = t.TempDir()
	settings.Output.SQLite.Path = filepath.Join(settings.Main.DataDir, "test.db")
	require.NoError(t, settings.EnsureDirectories())

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	m, err := metrics.NewFewShotMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	mgr, err := New(settings, store, &stubRecognizer{}, m)
	require.NoError(t, err)
	_, err = mgr.Learn(context.Background(), "red bicycle", trainingImages(t, 3))
	require.NoError(t, err)

	m2, err := metrics.NewFewShotMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	reloaded, err := New(settings, store, &stubRecognizer{}, m2)
	require.NoError(t, err)
	assert.True(t, reloaded.IsLearned("red bicycle"))
}
