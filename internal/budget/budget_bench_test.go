package budget

import (
	"fmt"
	"strings"
	"testing"
)

func BenchmarkEstimateTokens(b *testing.B) {
	inputs := []int{64, 256, 1024, 4096, 16384, 65536}
	for _, n := range inputs {
		b.Run(fmt.Sprintf("chars=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = EstimateTokensFromChars(n)
			}
		})
	}
}

func BenchmarkTruncateToTokens(b *testing.B) {
	page := strings.Repeat("A paragraph of page text that goes on.\n\n", 4000)
	for _, model := range []string{"gemini-nano", "gpt-4o", "mystery-model"} {
		budget := RemainingContextWithHeadroom(model, 1024, 200)
		b.Run(model, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = TruncateToTokens(page, budget)
			}
		})
	}
}
