package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dpshade/scriptureqa/internal/config"
	"github.com/eliben/go-sentencepiece"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

var _ Backend = (*ONNXGenerator)(nil)

// ErrClosed is returned by a generator used after Close
var ErrClosed = errors.New("generator is closed")

// ONNXGenerator runs a decoder-only causal language model locally with ONNX
// Runtime and a SentencePiece tokenizer. The model must take input_ids and
// attention_mask (plus position_ids when configured) and return logits
// shaped [batch, sequence, vocab].
type ONNXGenerator struct {
	config        config.ONNXConfig
	session       *ort.DynamicSession[int64, float32]
	tokenizer     *sentencepiece.Processor
	modelPath     string
	tokenizerPath string
	dataPath      string
	httpClient    *http.Client

	// sem guards the session and tokenizer. It is never held across
	// downloads, and waiting for it respects the caller's context.
	sem   chan struct{}
	ready atomic.Bool

	// closing is cancelled by Close and aborts in-flight downloads.
	closing context.Context
	stop    context.CancelFunc
}

// NewONNXGenerator creates a new ONNX backend. Nothing is loaded until
// Initialize or the first Generate call.
func NewONNXGenerator(cfg config.ONNXConfig, dataDir string) *ONNXGenerator {
	modelDir := filepath.Join(dataDir, "models")
	closing, stop := context.WithCancel(context.Background())

	g := &ONNXGenerator{
		config:        cfg,
		modelPath:     cfg.ModelPath,
		tokenizerPath: cfg.TokenizerPath,
		httpClient:    &http.Client{Timeout: cfg.DownloadTimeout.Duration},
		sem:           make(chan struct{}, 1),
		closing:       closing,
		stop:          stop,
	}
	if g.modelPath == "" {
		g.modelPath = filepath.Join(modelDir, "model.onnx")
	}
	if g.tokenizerPath == "" {
		g.tokenizerPath = filepath.Join(modelDir, "tokenizer.model")
	}
	g.dataPath = g.modelPath + "_data"
	return g
}

// Name returns the backend name
func (g *ONNXGenerator) Name() string {
	return config.BackendONNX
}

func (g *ONNXGenerator) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *ONNXGenerator) release() {
	<-g.sem
}

// Initialize downloads missing files, then loads the model and tokenizer
func (g *ONNXGenerator) Initialize(ctx context.Context) error {
	if g.ready.Load() {
		return nil
	}
	if g.closing.Err() != nil {
		return ErrClosed
	}

	if err := g.downloadModelFiles(ctx); err != nil {
		return fmt.Errorf("failed to download model files: %w", err)
	}

	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	return g.loadLocked()
}

func (g *ONNXGenerator) loadLocked() error {
	if g.ready.Load() {
		return nil
	}
	if g.closing.Err() != nil {
		return ErrClosed
	}

	if err := g.loadONNXModel(); err != nil {
		return fmt.Errorf("failed to load ONNX model: %w", err)
	}

	if err := g.loadTokenizer(); err != nil {
		g.session.Destroy()
		g.session = nil
		ort.DestroyEnvironment()
		return fmt.Errorf("failed to load tokenizer: %w", err)
	}

	g.ready.Store(true)
	log.Info().Str("model", g.modelPath).Msg("ONNX generator initialized successfully")
	return nil
}

// downloadModelFiles fetches the model, its external data and the tokenizer
// when they are missing. Close aborts it.
func (g *ONNXGenerator) downloadModelFiles(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(g.closing, cancel)
	defer stop()

	files := []struct {
		path     string
		url      string
		optional bool
	}{
		{g.modelPath, g.config.ModelURL, false},
		{g.dataPath, g.config.DataURL, true},
		{g.tokenizerPath, g.config.TokenizerURL, false},
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			log.Debug().Str("path", f.path).Msg("File already exists")
			continue
		}
		if f.url == "" {
			if f.optional {
				continue
			}
			return fmt.Errorf("%s is missing and no download URL is configured", f.path)
		}

		log.Info().Str("url", f.url).Str("path", f.path).Msg("Downloading file...")
		if err := downloadFile(ctx, g.httpClient, f.url, f.path); err != nil {
			return fmt.Errorf("failed to download %s: %w", filepath.Base(f.path), err)
		}
		log.Info().Str("path", f.path).Msg("File downloaded successfully")
	}

	return nil
}

// downloadFile writes url to path through a private temp file, so
// concurrent or aborted downloads never leave a partial file at path.
func downloadFile(ctx context.Context, client *http.Client, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	tmp := file.Name()

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// loadONNXModel creates the inference session
func (g *ONNXGenerator) loadONNXModel() error {
	if g.config.LibraryPath != "" {
		ort.SetSharedLibraryPath(g.config.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	session, err := ort.NewDynamicSession[int64, float32](g.modelPath, g.inputNames(), []string{"logits"})
	if err != nil {
		ort.DestroyEnvironment()
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}

	g.session = session
	return nil
}

func (g *ONNXGenerator) inputNames() []string {
	names := []string{"input_ids", "attention_mask"}
	if g.config.PositionIDs {
		names = append(names, "position_ids")
	}
	return names
}

// loadTokenizer loads the SentencePiece tokenizer
func (g *ONNXGenerator) loadTokenizer() error {
	file, err := os.Open(g.tokenizerPath)
	if err != nil {
		return fmt.Errorf("failed to open tokenizer file: %w", err)
	}
	defer file.Close()

	tokenizer, err := sentencepiece.NewProcessor(file)
	if err != nil {
		return fmt.Errorf("failed to load SentencePiece tokenizer: %w", err)
	}

	g.tokenizer = tokenizer
	return nil
}

// Generate greedily decodes up to maxLength new tokens after prompt
func (g *ONNXGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	if err := g.Initialize(ctx); err != nil {
		return "", err
	}

	if err := g.acquire(ctx); err != nil {
		return "", err
	}
	defer g.release()
	if !g.ready.Load() {
		return "", ErrClosed
	}

	tokens := g.tokenizer.Encode(prompt)
	ids := make([]int64, 0, len(tokens)+maxLength+1)
	if g.config.BOSTokenID >= 0 {
		ids = append(ids, int64(g.config.BOSTokenID))
	}
	for _, t := range tokens {
		ids = append(ids, int64(t.ID))
	}
	ids = truncateLeft(ids, g.config.ContextLength-maxLength)
	if len(ids) == 0 {
		return "", fmt.Errorf("context length %d leaves no room for a prompt with max length %d", g.config.ContextLength, maxLength)
	}

	start := len(ids)
	for step := 0; step < maxLength && len(ids) < g.config.ContextLength; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if g.closing.Err() != nil {
			return "", ErrClosed
		}

		next, err := g.nextToken(ids)
		if err != nil {
			return "", err
		}
		if next == int64(g.config.EOSTokenID) {
			break
		}
		ids = append(ids, next)
	}

	generated := make([]int, 0, len(ids)-start)
	for _, id := range ids[start:] {
		generated = append(generated, int(id))
	}
	return g.tokenizer.Decode(generated), nil
}

// nextToken runs the model over ids and returns the most likely next token
func (g *ONNXGenerator) nextToken(ids []int64) (int64, error) {
	seqLen := int64(len(ids))
	vocab := int64(g.config.VocabSize)
	inputShape := []int64{1, seqLen}

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	inputs := [][]int64{ids, mask}
	if g.config.PositionIDs {
		positions := make([]int64, len(ids))
		for i := range positions {
			positions[i] = int64(i)
		}
		inputs = append(inputs, positions)
	}

	tensors := make([]*ort.Tensor[int64], 0, len(inputs))
	defer func() {
		for _, t := range tensors {
			t.Destroy()
		}
	}()
	for i, data := range inputs {
		t, err := ort.NewTensor(inputShape, data)
		if err != nil {
			return 0, fmt.Errorf("failed to create %s tensor: %w", g.inputNames()[i], err)
		}
		tensors = append(tensors, t)
	}

	logitsTensor, err := ort.NewEmptyTensor[float32]([]int64{1, seqLen, vocab})
	if err != nil {
		return 0, fmt.Errorf("failed to create logits tensor: %w", err)
	}
	defer logitsTensor.Destroy()

	err = g.session.Run(tensors, []*ort.Tensor[float32]{logitsTensor})
	if err != nil {
		return 0, fmt.Errorf("failed to run ONNX model: %w", err)
	}

	logits := logitsTensor.GetData()
	if int64(len(logits)) < seqLen*vocab {
		return 0, fmt.Errorf("logits size mismatch: got %d, expected %d", len(logits), seqLen*vocab)
	}
	return int64(argmax(logits[(seqLen-1)*vocab : seqLen*vocab])), nil
}

// Close aborts pending downloads and releases the session and the runtime
// environment. It waits only for an in-progress inference step to finish.
func (g *ONNXGenerator) Close() error {
	g.stop()

	g.sem <- struct{}{}
	defer g.release()

	if !g.ready.Load() {
		return nil
	}
	if g.session != nil {
		g.session.Destroy()
		g.session = nil
	}
	g.tokenizer = nil

	g.ready.Store(false)
	return ort.DestroyEnvironment()
}

// argmax returns the index of the largest value, or -1 for an empty slice
func argmax(values []float32) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// truncateLeft keeps the last limit ids so the prompt tail survives
func truncateLeft(ids []int64, limit int) []int64 {
	if limit <= 0 {
		return ids[:0]
	}
	if len(ids) <= limit {
		return ids
	}
	return ids[len(ids)-limit:]
}
