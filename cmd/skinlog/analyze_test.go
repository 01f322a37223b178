package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raine/skinlog-bot/internal/capture"
	"github.com/raine/skinlog-bot/internal/catalog"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/raine/skinlog-bot/internal/llm"
	"github.com/raine/skinlog-bot/internal/skin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) AnalyzeSkin(ctx context.Context, img capture.Image, lang i18n.Language) (*llm.Analysis, error) {
	args := m.Called(ctx, img, lang)
	if a := args.Get(0); a != nil {
		return a.(*llm.Analysis), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubStream struct {
	frame   []byte
	stopped bool
}

func (s *stubStream) Frame(context.Context) ([]byte, error) { return s.frame, nil }
func (s *stubStream) Stop() error {
	s.stopped = true
	return nil
}

type stubDevice struct {
	stream  *stubStream
	openErr error
}

func (d *stubDevice) Open(context.Context) (capture.Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{R: 220, G: 180, B: 160, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func sampleResult() *skin.AnalysisResult {
	return &skin.AnalysisResult{
		OverallScore:           82,
		SkinType:               skin.Dry,
		Metrics:                skin.Metrics{Hydration: 35, Oiliness: 20, Troubles: 15, Pigmentation: 25, Pores: 30, Wrinkles: 10},
		ExpertCommentary:       "Skin barrier needs moisture.",
		RecommendedIngredients: []string{"Hyaluronic Acid", "Ceramides"},
		SuggestedRoutine:       skin.Routine{Morning: []string{"Cleanse"}, Evening: []string{"Moisturize"}},
	}
}

func TestRunAnalyze_File(t *testing.T) {
	path := writeFile(t, "face.png", pngBytes(t))
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeSkin", mock.Anything, mock.MatchedBy(func(img capture.Image) bool {
		return img.MIMEType == "image/png"
	}), i18n.English).Return(&llm.Analysis{Result: sampleResult()}, nil).Once()

	var out bytes.Buffer
	err := runAnalyze(context.Background(), &analyzeOptions{file: path}, i18n.English, analyzer, catalog.Default(), nil, strings.NewReader(""), &out)
	require.NoError(t, err)

	en := i18n.For(i18n.English)
	assert.Contains(t, out.String(), en.AnalyzingTitle)
	assert.Contains(t, out.String(), en.ReportTitle)
	analyzer.AssertExpectations(t)
}

func TestRunAnalyze_JSON(t *testing.T) {
	path := writeFile(t, "face.png", pngBytes(t))
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeSkin", mock.Anything, mock.Anything, i18n.Korean).
		Return(&llm.Analysis{Result: sampleResult()}, nil).Once()

	var out bytes.Buffer
	err := runAnalyze(context.Background(), &analyzeOptions{file: path, json: true}, i18n.Korean, analyzer, catalog.Default(), nil, strings.NewReader(""), &out)
	require.NoError(t, err)

	// Skip the analyzing banner
	body := out.String()[strings.Index(out.String(), "{"):]
	var got skin.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, skin.Dry, got.SkinType)
	assert.Equal(t, 82.0, got.OverallScore)
}

func TestRunAnalyze_RejectsNonImage(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some notes"))
	analyzer := new(mockAnalyzer)

	var out bytes.Buffer
	err := runAnalyze(context.Background(), &analyzeOptions{file: path}, i18n.English, analyzer, catalog.Default(), nil, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, capture.ErrNotImage))
	assert.Contains(t, err.Error(), i18n.For(i18n.English).NotAnImage)
	analyzer.AssertNotCalled(t, "AnalyzeSkin", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunAnalyze_AnalysisFailure(t *testing.T) {
	path := writeFile(t, "face.png", pngBytes(t))
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeSkin", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, llm.ErrAnalysisFailed).Once()

	var out bytes.Buffer
	err := runAnalyze(context.Background(), &analyzeOptions{file: path}, i18n.English, analyzer, catalog.Default(), nil, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrAnalysisFailed))
	assert.Contains(t, err.Error(), i18n.For(i18n.English).AnalysisFailed)
}

func TestRunAnalyze_Camera(t *testing.T) {
	frame := pngBytes(t)
	stream := &stubStream{frame: frame}
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeSkin", mock.Anything, mock.MatchedBy(func(img capture.Image) bool {
		return bytes.Equal(img.Data, frame)
	}), i18n.English).Return(&llm.Analysis{Result: sampleResult()}, nil).Once()

	var out bytes.Buffer
	err := runAnalyze(context.Background(), &analyzeOptions{camera: "/dev/video0"}, i18n.English, analyzer, catalog.Default(), &stubDevice{stream: stream}, strings.NewReader("\n"), &out)
	require.NoError(t, err)

	assert.True(t, stream.stopped, "camera released after capture")
	assert.Contains(t, out.String(), i18n.For(i18n.English).ReadyTitle)
	analyzer.AssertExpectations(t)
}

func TestRunAnalyze_CameraUnavailable(t *testing.T) {
	analyzer := new(mockAnalyzer)

	var out bytes.Buffer
	err := runAnalyze(context.Background(), &analyzeOptions{camera: "/dev/video9"}, i18n.Korean, analyzer, catalog.Default(), &stubDevice{openErr: errors.New("permission denied")}, strings.NewReader("\n"), &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, capture.ErrCameraUnavailable))
	assert.Contains(t, err.Error(), i18n.For(i18n.Korean).CameraDenied)
}

func TestRunAnalyze_CameraCancelled(t *testing.T) {
	stream := &stubStream{frame: pngBytes(t)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never delivers a line
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	err := runAnalyze(ctx, &analyzeOptions{camera: "/dev/video0"}, i18n.English, new(mockAnalyzer), catalog.Default(), &stubDevice{stream: stream}, r, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, stream.stopped)
}

func TestAnalyzeCmd_RequiresOneSource(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"--file", "a.jpg", "--camera", "/dev/video0"},
	} {
		cmd := newAnalyzeCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.Execute()
		assert.ErrorContains(t, err, "exactly one of --file or --camera")
	}
}

func TestAnalyzeCmd_RejectsLanguage(t *testing.T) {
	cmd := newAnalyzeCmd()
	cmd.SetArgs([]string{"--file", "a.jpg", "--lang", "fi"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "unsupported language")
}

func TestBuildAnalyzer(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SKINLOG_PROVIDER", "")

	_, _, err := buildAnalyzer(context.Background(), &analyzeOptions{})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")

	_, _, err = buildAnalyzer(context.Background(), &analyzeOptions{provider: "openai"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, _, err = buildAnalyzer(context.Background(), &analyzeOptions{provider: "llama"})
	assert.ErrorContains(t, err, "unknown provider")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	analyzer, closeFn, err := buildAnalyzer(context.Background(), &analyzeOptions{
		provider: "openai",
		cacheDB:  filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &llm.CachedAnalyzer{}, analyzer)
}

func TestPrintCatalog(t *testing.T) {
	var out bytes.Buffer
	printCatalog(&out, catalog.Default())
	assert.Contains(t, out.String(), "Hydrating Hyaluronic Serum")
	assert.Contains(t, out.String(), "Azelaic Acid, Niacinamide")
}

func TestCatalogCmd_ReadsPathFromEnvAtRunTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - id: env1\n    name: Env Toner\n"), 0644))

	t.Setenv("SKINLOG_CATALOG_PATH", "")
	cmd := newCatalogCmd()
	// Set after the flags exist, the way config.env is loaded in PersistentPreRun
	t.Setenv("SKINLOG_CATALOG_PATH", path)

	var out bytes.Buffer
	cmd.SetArgs([]string{})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Env Toner")
}

func TestLoadCatalog_FlagWinsOverEnv(t *testing.T) {
	t.Setenv("SKINLOG_CATALOG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := loadCatalog("")
	assert.Error(t, err)
	assert.Nil(t, c)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - id: f1\n"), 0644))
	c, err = loadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}
