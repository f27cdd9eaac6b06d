package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ProvidersCmd lists which model backends the current configuration enables.
func ProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured model providers",
		Run: func(cmd *cobra.Command, args []string) {
			c := ServerConfig
			report := func(name string, configured bool) {
				status := "not configured"
				if configured {
					status = "configured"
				}
				fmt.Printf("  %-10s %s\n", name, status)
			}
			fmt.Println("Providers:")
			report("anthropic", c.Providers.AnthropicAPIKey != "")
			report("openai", c.Providers.OpenAIAPIKey != "")
			report("gemini", c.Providers.GeminiAPIKey != "")
			report("ollama", c.Providers.OllamaBaseURL != "")
			if c.Providers.SummaryModel != "" {
				fmt.Printf("Summary model: %s\n", c.Providers.SummaryModel)
			}
		},
	}
}
