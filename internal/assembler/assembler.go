package assembler

import (
	"context"
	"strings"
	"time"

	"github.com/threadloom/threadloom/internal/compress"
	"github.com/threadloom/threadloom/internal/logging"
)

// CompressionStats records how the pinned context was compressed for a turn.
// Nil stats on the result mean the pinned text went out uncompressed.
type CompressionStats struct {
	Aggressiveness float64
	MaxTokens      int64
	MinTokens      int64
	InputTokens    int64
	OutputTokens   int64
	Ratio          float64
	Elapsed        time.Duration
}

// Input is everything the assembler needs for one turn.
type Input struct {
	SystemText      string
	PinnedSummaries []string // most recently updated first
	MemoryContext   string
	UserText        string
}

// Assembled is the final prompt for one turn. Injected is the exact text
// sent to the model (system instructions plus prompt) and is persisted
// verbatim for audit.
type Assembled struct {
	System      string
	Prompt      string
	Injected    string
	Compression *CompressionStats
}

// Assembler builds the model prompt from system instructions, pinned-node
// summaries, and long-term memory context.
type Assembler struct {
	compressor *compress.Client
}

// New creates an assembler. The compressor may be disabled; assembly then
// always uses raw pinned text.
func New(compressor *compress.Client) *Assembler {
	return &Assembler{compressor: compressor}
}

// Assemble produces the prompt for one turn. Compression failures fall back
// silently to the uncompressed pinned text.
func (a *Assembler) Assemble(ctx context.Context, in Input) Assembled {
	pinned := strings.TrimSpace(strings.Join(in.PinnedSummaries, "\n"))

	var stats *CompressionStats
	if pinned != "" && a.compressor.Enabled() {
		start := time.Now()
		result, err := a.compressor.Compress(ctx, pinned)
		if err != nil {
			logging.Warnf("pinned context compression failed, using raw text: %v", err)
		} else {
			policy := a.compressor.Policy()
			stats = &CompressionStats{
				Aggressiveness: policy.Aggressiveness,
				MaxTokens:      int64(policy.MaxOutputTokens),
				MinTokens:      int64(policy.MinOutputTokens),
				InputTokens:    result.OriginalInputTokens,
				OutputTokens:   result.OutputTokens,
				Elapsed:        time.Since(start),
			}
			if result.OriginalInputTokens > 0 {
				stats.Ratio = float64(result.OutputTokens) / float64(result.OriginalInputTokens)
			}
			pinned = result.Output
		}
	}

	var prompt strings.Builder
	prompt.WriteString("## Memory Context\n")
	if pinned != "" {
		prompt.WriteString(pinned)
		prompt.WriteString("\n")
	}
	if in.MemoryContext != "" {
		prompt.WriteString(in.MemoryContext)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n## User Message\n")
	prompt.WriteString(in.UserText)

	injected := "## System Instructions\n" + in.SystemText + "\n\n" + prompt.String()

	return Assembled{
		System:      in.SystemText,
		Prompt:      prompt.String(),
		Injected:    injected,
		Compression: stats,
	}
}
