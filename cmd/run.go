package cmd

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/elshanq/resume-screener/internal/ai"
	"github.com/elshanq/resume-screener/internal/ai/gemini"
	"github.com/elshanq/resume-screener/internal/extract"
	"github.com/elshanq/resume-screener/internal/logger"
	"github.com/elshanq/resume-screener/internal/mail"
	"github.com/elshanq/resume-screener/internal/pipeline"
	"github.com/elshanq/resume-screener/internal/roles"
	"github.com/elshanq/resume-screener/internal/secrets"
	"github.com/elshanq/resume-screener/internal/zoom"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptProceed  = "Proceed to interview scheduling"
	PromptShowText = "Show extracted resume text"
	PromptReset    = "Reset the application"
	PromptQuit     = "Quit"

	defaultTimezone = "Asia/Baku"
)

var prompt = promptui.Select{
	Label: "Candidate accepted. What next?",
	Items: []string{PromptProceed, PromptShowText, PromptReset, PromptQuit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Screen one resume: extract, evaluate and deliver the outcome",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "path to the candidate's resume (PDF)")
	runCmd.Flags().String("role", "", "role identifier the candidate applies for")
	runCmd.Flags().String("email", "", "candidate email, overriding the address found in the resume")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before scheduling an accepted candidate")
	runCmd.Flags().String("preview", "", "write a PNG preview of the resume's first page to this path")
}

// run drives one candidate session end to end.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the resume-screener", zap.String("version", version))

	catalogue := roles.Default()
	if config.Roles != nil {
		if err := catalogue.Merge(config.Roles); err != nil {
			logger.Fatal("merging role overrides", zap.Error(err))
		}
	}

	roleID := cmd.Flag("role").Value.String()
	if strings.TrimSpace(roleID) == "" {
		logger.Fatal("a role is required",
			zap.Strings("known_roles", catalogue.IDs()),
			zap.String("hint", "pass --role"),
		)
	}

	role, err := catalogue.Get(roleID)
	if err != nil {
		logger.Fatal("resolving role", zap.Error(err))
	}

	resumePath := cmd.Flag("resume").Value.String()
	if strings.TrimSpace(resumePath) == "" {
		logger.Fatal("a resume is required", zap.String("hint", "pass --resume with a PDF path"))
	}

	pdf, err := os.ReadFile(resumePath)
	if err != nil {
		logger.Fatal("reading resume file", zap.Error(err))
	}

	extractor := extract.New()

	evaluator, err := buildEvaluator(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building evaluator", zap.Error(err))
	}

	notifier, err := buildNotifier(config.Mail, logger)
	if err != nil {
		logger.Fatal("building notifier", zap.Error(err))
	}

	scheduler, err := buildScheduler(config, logger)
	if err != nil {
		logger.Fatal("building scheduler", zap.Error(err))
	}

	pipe := pipeline.New(pipeline.Deps{
		Extractor: extractor,
		Evaluator: evaluator,
		Scheduler: scheduler,
		Notifier:  notifier,
		Logger:    logger,
	}, config.CallTimeout)

	pipe.SetRole(role)

	if err := pipe.Submit(ctx, pdf); err != nil {
		// The session never left the empty stage; nothing was evaluated or sent.
		logger.Fatal("processing resume", zap.Error(err))
	}

	if previewPath := cmd.Flag("preview").Value.String(); previewPath != "" {
		if err := writePreview(extractor, pdf, previewPath); err != nil {
			logger.Warn("writing resume preview", zap.Error(err))
		} else {
			logger.Info("resume preview written", zap.String("path", previewPath))
		}
	}

	if override := cmd.Flag("email").Value.String(); override != "" {
		if err := pipe.SetEmail(override); err != nil {
			logger.Fatal("setting candidate email", zap.Error(err))
		}
	}

	if pipe.Email() == "" {
		email, err := promptForEmail()
		if err != nil {
			logger.Fatal("reading candidate email", zap.Error(err))
		}
		if err := pipe.SetEmail(email); err != nil {
			logger.Fatal("setting candidate email", zap.Error(err))
		}
	}

	verdict, err := pipe.Evaluate(ctx)
	if err != nil {
		if verdict == nil {
			logger.Fatal("evaluating resume", zap.Error(err))
		}
		// The verdict exists; only the rejection dispatch failed.
		logger.Error("delivering rejection feedback", zap.Error(err))
	}

	printVerdict(verdict)

	if !verdict.Accepted() {
		if pipe.Stage() != pipeline.StageOutcomeSent {
			// The dispatch error was logged above; the exit code has to tell
			// callers the feedback never went out.
			os.Exit(1)
		}
		logger.Info("candidate rejected, feedback email dispatched", zap.String("email", pipe.Email()))
		return
	}

	autoApprove := strings.EqualFold(cmd.Flag("auto-approve").Value.String(), "true")

	for {
		action := PromptProceed
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		done, err := handleAction(ctx, action, pipe, logger)
		if err != nil {
			logger.Error("delivering outcome", zap.Error(err))
			if autoApprove {
				os.Exit(1)
			}
			continue
		}
		if done {
			return
		}
	}
}

func handleAction(ctx context.Context, action string, pipe *pipeline.Pipeline, logger *zap.Logger) (bool, error) {
	switch action {
	case PromptProceed:
		if err := pipe.Proceed(ctx); err != nil {
			return false, err
		}

		meeting := pipe.Meeting()
		fmt.Printf("\nApplication complete: selection email sent, interview scheduled.\n")
		fmt.Printf("  Date: %s\n  Time: %s\n  Join URL: %s\n\n", meeting.Date, meeting.Time, meeting.JoinURL)
		return true, nil
	case PromptShowText:
		fmt.Println(pipe.ResumeText())
		return false, nil
	case PromptReset:
		pipe.Reset()
		return true, nil
	case PromptQuit:
		logger.Info("exiting", zap.String("reason", "quit requested"))
		return true, nil
	default:
		return false, fmt.Errorf("invalid action: %s", action)
	}
}

func printVerdict(v *ai.Verdict) {
	fmt.Printf("\nFit score: %d%%\nDecision: %s\n\n", v.FitScore, strings.ToUpper(string(v.Decision)))
	fmt.Printf("Analysis:\n%s\n", v.Narrative)

	if len(v.Strengths) > 0 {
		fmt.Println("\nStrengths:")
		for _, s := range v.Strengths {
			fmt.Printf("  - %s\n", s)
		}
	}

	if len(v.Weaknesses) > 0 {
		fmt.Println("\nAreas to improve:")
		for _, w := range v.Weaknesses {
			fmt.Printf("  - %s\n", w)
		}
	}

	if len(v.Suggestions) > 0 {
		fmt.Println("\nSuggestions:")
		for _, s := range v.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}

	fmt.Println()
}

func promptForEmail() (string, error) {
	emailPrompt := promptui.Prompt{
		Label: "Candidate email",
		Validate: func(input string) error {
			if !strings.Contains(input, "@") {
				return errors.New("a valid email address is required")
			}
			return nil
		},
	}

	return emailPrompt.Run()
}

func buildEvaluator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Evaluator, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewEvaluator(generator, genLogger, cfg.Gemini.MaxLogLength), nil
}

func buildNotifier(cfg *MailConfig, logger *zap.Logger) (*mail.Notifier, error) {
	if cfg == nil {
		return nil, errors.New("mail configuration is required")
	}

	password, err := secrets.Load(secrets.Source{
		Name:  "mail password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
		Env:   "MAIL_PASSWORD",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set mail.password-file or MAIL_PASSWORD)", err)
	}

	return mail.NewNotifier(cfg.Host, cfg.Port, cfg.Username, password, logger)
}

func buildScheduler(config *Config, logger *zap.Logger) (*zoom.Scheduler, error) {
	if config.Zoom == nil {
		return nil, errors.New("zoom configuration is required")
	}

	secret, err := secrets.Load(secrets.Source{
		Name:  "zoom client secret",
		Value: config.Zoom.ClientSecret,
		File:  config.Zoom.ClientSecretFile,
		Env:   "ZOOM_CLIENT_SECRET",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set zoom.client-secret-file or ZOOM_CLIENT_SECRET)", err)
	}

	client, err := zoom.NewClient(config.Zoom.AccountID, config.Zoom.ClientID, secret, logger)
	if err != nil {
		return nil, err
	}

	timezone := strings.TrimSpace(config.Timezone)
	if timezone == "" {
		timezone = defaultTimezone
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	return zoom.NewScheduler(client, location, logger), nil
}

func writePreview(extractor *extract.Extractor, pdf []byte, path string) error {
	img, err := extractor.Preview(pdf)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}
