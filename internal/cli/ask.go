package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Answer questions about a local PDF",
	Long: `Logs in, indexes the PDF given with --file, answers each question in
turn and removes the index again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askFile     string
	askUser     string
	askPassword string
	askSources  bool
)

func init() {
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "PDF to ask about")
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "Username")
	askCmd.Flags().StringVarP(&askPassword, "password", "p", "", "Password (or DOCQA_PASSWORD)")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "Print the passages each answer is based on")
	_ = askCmd.MarkFlagRequired("file")
	_ = askCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(askFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", askFile, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	sess, err := a.service.Login(askUser, passwordFrom(askPassword))
	if err != nil {
		return err
	}

	doc, err := a.service.Upload(ctx, sess, filepath.Base(askFile), data)
	if err != nil {
		return err
	}
	cmd.Printf("Indexed %s: %d pages, %d chunks\n\n", doc.Name, doc.PageCount, doc.Index.Chunks)

	var failed int
	for _, question := range args {
		cmd.Printf("Q: %s\n", question)
		answer, err := a.service.Ask(ctx, sess, question)
		if err != nil {
			failed++
			cmd.PrintErrf("error: %v\n\n", err)
			continue
		}
		cmd.Printf("A: %s\n", answer.Text)
		if askSources {
			for _, p := range answer.Passages {
				cmd.Printf("   [page %d] %s\n", p.Page, snippet(p.Text, 120))
			}
		}
		cmd.Println()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(args))
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
