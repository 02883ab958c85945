package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/gemini-media-chat/internal/chat"
	"github.com/fpang/gemini-media-chat/internal/config"
	"github.com/fpang/gemini-media-chat/internal/filehandler"
	"github.com/fpang/gemini-media-chat/internal/keypool"
	"github.com/fpang/gemini-media-chat/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	promptFlag       string
	mediaFlag        string
	modelFlag        string
	systemFlag       string
	responseMIMEFlag string
	noThreadFlag     bool
	cleanupFlag      bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "gemini-chat",
	Short: "Send oversized media to Gemini as a multi-segment conversation",
	Long: `Gemini Media Chat sends a prompt together with an image or video to the
Gemini API, transparently working around per-file size and duration limits.

Long videos are split into duration-bounded segments and sent as consecutive
turns of one conversation, each carrying the previous reply for continuity.
Oversized segments are transcoded down to a target size first. Quota
exhaustion rotates to the next configured API key and retries the same
segment, so a pool of keys behaves like one large quota.

Configuration comes from GEMINI_API_KEYS (comma-separated) and the other
GEMINI_* environment variables; flags override where noted.

Examples:
  gemini-chat --prompt "Summarize this lecture" --media lecture.mp4
  gemini-chat -p "What breed is this dog?" -f dog.jpg --response-mime text/plain
  gemini-chat -p "Describe each scene" -f trip.mp4 --system "Reply in French"
  gemini-chat --cleanup  # delete files stored remotely for the current key`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Prompt to send (prompted interactively when omitted)")
	rootCmd.Flags().StringVarP(&mediaFlag, "media", "f", "", "Path to an image or video to attach")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default from GEMINI_MODEL)")
	rootCmd.Flags().StringVarP(&systemFlag, "system", "s", "", "System instruction for the conversation")
	rootCmd.Flags().StringVar(&responseMIMEFlag, "response-mime", "", "Expected reply MIME type (default application/json)")
	rootCmd.Flags().BoolVar(&noThreadFlag, "no-thread", false, "Do not carry each reply into the next segment's prompt")
	rootCmd.Flags().BoolVar(&cleanupFlag, "cleanup", false, "Delete remotely stored files and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg := config.Load()
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if noThreadFlag {
		cfg.ThreadReplies = false
	}

	pool, err := keypool.New(cfg.APIKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("No API keys configured - set GEMINI_API_KEYS")
	}

	sess := chat.NewSession(pool, chat.SessionOptions{
		Model:             cfg.Model,
		SystemInstruction: systemFlag,
		ResponseMIMEType:  responseMIMEFlag,
	})
	ctrl := chat.NewController(sess, cfg)
	ctx := context.Background()

	if cleanupFlag {
		if err := ctrl.CleanupRemoteFiles(ctx); err != nil {
			log.Fatal().Err(err).Msg("Remote file cleanup failed")
		}
		log.Info().Msg("Remote file cleanup complete")
		return
	}

	if mediaFlag != "" {
		info, err := os.Stat(mediaFlag)
		if err != nil {
			if os.IsNotExist(err) {
				log.Fatal().Str("path", mediaFlag).Msg("Media file not found")
			}
			log.Fatal().Err(err).Str("path", mediaFlag).Msg("Failed to access media file")
		}
		if info.IsDir() {
			log.Fatal().Str("path", mediaFlag).Msg("Media path is a directory")
		}
		// Fail fast before any upload if the probe tool is missing.
		if filehandler.IsVideo(filepath.Ext(mediaFlag)) {
			if err := filehandler.CheckFFprobeAvailable(); err != nil {
				log.Fatal().Err(err).Msg("Video handling unavailable")
			}
		}
	}

	prompt := promptFlag
	if prompt == "" {
		prompt = promptForPrompt()
	}

	replies, err := ctrl.Send(ctx, chat.SendRequest{
		Prompt:    prompt,
		MediaPath: mediaFlag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Exchange failed")
	}

	for i, reply := range replies {
		if len(replies) > 1 {
			fmt.Printf("--- Part %d of %d ---\n", i+1, len(replies))
		}
		fmt.Println(reply)
	}
}

// promptForPrompt interactively asks the user for the prompt text.
func promptForPrompt() string {
	fmt.Print("Enter prompt: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read prompt")
	}

	line = strings.TrimSpace(line)
	if line == "" {
		log.Fatal().Msg("Prompt cannot be empty")
	}
	return line
}
