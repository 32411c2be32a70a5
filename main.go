package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/results"
	"pdf-translator/internal/types"
)

// Command line flags
var (
	inputFlag       = flag.String("input", "", "PDF file to translate")
	outputFlag      = flag.String("output", "", "Output directory for result files")
	pagesFlag       = flag.String("pages", "", "Pages to translate, e.g. 1-3,5,8- (default all)")
	allFlag         = flag.Bool("all", false, "Translate every page")
	configFlag      = flag.String("config", "", "Config file path")
	backendFlag     = flag.String("backend", "", "Translation backend: openai or gemini")
	modelFlag       = flag.String("model", "", "Model name for the selected backend")
	sourceFlag      = flag.String("source", "", "Source language code")
	targetFlag      = flag.String("target", "", "Target language code")
	maxChunkFlag    = flag.Int("max-chunk", 0, "Maximum chunk length in characters")
	overlapFlag     = flag.Int("overlap", -1, "Overlap between chunks in characters")
	delayFlag       = flag.Duration("delay", 0, "Pause between pages")
	ratioFlag       = flag.Float64("ratio", 0, "Fraction of units per page allowed to fail")
	flatFlag        = flag.Bool("flat", false, "Collapse each page to a single line before translating")
	cacheFlag       = flag.String("cache", "", "Translation cache file")
	excelFlag       = flag.Bool("excel", false, "Also write a readable Excel workbook")
	retryFromFlag   = flag.String("retry-from", "", "Re-run the failed pages of a previous session JSON and merge")
	retryFailedFlag = flag.Bool("retry-failed", false, "Re-run the pages recorded in the failure ledger")
	listFlag        = flag.Bool("list", false, "List sessions and failed pages in the output directory")
	saveConfigFlag  = flag.Bool("save-config", false, "Write the effective configuration back to the config file")
	logLevelFlag    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFileFlag     = flag.String("log-file", "pdf-translator.log", "Log file path (empty disables)")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("PDF Translator - 将中文 PDF 文档逐页翻译成英文")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pdf-translator -input <PDF> [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -input <PATH>        待翻译的 PDF 文件")
	fmt.Println("  -output <DIR>        结果输出目录 (默认 output)")
	fmt.Println("  -pages <LIST>        页码范围, 例如 1-3,5,8- (默认全部)")
	fmt.Println("  -all                 翻译全部页面")
	fmt.Println("  -config <PATH>       配置文件路径")
	fmt.Println("  -backend <NAME>      翻译后端: openai 或 gemini")
	fmt.Println("  -model <NAME>        模型名称")
	fmt.Println("  -source <LANG>       源语言 (默认 zh-CN)")
	fmt.Println("  -target <LANG>       目标语言 (默认 en)")
	fmt.Println("  -max-chunk <N>       单个分块最大字符数 (默认 800)")
	fmt.Println("  -overlap <N>         分块重叠字符数 (默认 100)")
	fmt.Println("  -delay <DURATION>    页间等待时间 (默认 2s)")
	fmt.Println("  -ratio <R>           单页允许失败的单元比例 (默认 0)")
	fmt.Println("  -flat                整页折叠为单行后再翻译")
	fmt.Println("  -cache <PATH>        翻译缓存文件")
	fmt.Println("  -excel               额外生成 Excel 工作簿")
	fmt.Println("  -retry-from <JSON>   重新翻译已有结果中的失败页并合并")
	fmt.Println("  -retry-failed        重新翻译失败记录中的页面")
	fmt.Println("  -list                列出输出目录中的结果与失败记录")
	fmt.Println("  -save-config         将生效的配置(含命令行参数)写回配置文件")
	fmt.Println("  -log-level <LEVEL>   日志级别: debug, info, warn, error")
	fmt.Println("  -log-file <PATH>     日志文件 (为空则不写文件)")
	fmt.Println("  -h, -help            显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pdf-translator -input 需求说明.pdf")
	fmt.Println("  pdf-translator -input 需求说明.pdf -pages 1-5 -excel")
	fmt.Println("  pdf-translator -input 需求说明.pdf -backend gemini -delay 5s")
	fmt.Println("  pdf-translator -input 需求说明.pdf -retry-from output/需求说明_translation.json")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  API key 从配置文件或环境变量 OPENAI_API_KEY / GEMINI_API_KEY 读取。")
	fmt.Println("  翻译中按 Ctrl+C 会保存已完成的页面后退出。")
}

// applyFlags copies the flags that were set on the command line over cfg.
func applyFlags(cfg *types.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.OutputDir = *outputFlag
		case "backend":
			cfg.Backend = strings.ToLower(*backendFlag)
		case "model":
			if strings.EqualFold(cfg.Backend, types.BackendGemini) {
				cfg.GeminiModel = *modelFlag
			} else {
				cfg.OpenAIModel = *modelFlag
			}
		case "source":
			cfg.SourceLang = *sourceFlag
		case "target":
			cfg.TargetLang = *targetFlag
		case "max-chunk":
			cfg.MaxChunkLength = *maxChunkFlag
		case "overlap":
			cfg.ChunkOverlap = *overlapFlag
		case "delay":
			cfg.PageDelayMs = int(*delayFlag / time.Millisecond)
		case "ratio":
			cfg.MaxFailedChunkRatio = *ratioFlag
		case "flat":
			cfg.FlatText = *flatFlag
		case "cache":
			cfg.CachePath = *cacheFlag
		}
	})
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	level, ok := logger.ParseLevel(*logLevelFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "错误: 未知日志级别 %q\n", *logLevelFlag)
		os.Exit(2)
	}
	if err := logger.Init(&logger.Config{
		LogFilePath:   *logFileFlag,
		Level:         level,
		EnableConsole: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 日志初始化失败: %v\n", err)
	}

	code := run()
	logger.Close()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run() int {
	if *inputFlag == "" && !*listFlag {
		fmt.Fprintln(os.Stderr, "错误: 必须指定 -input")
		fmt.Println()
		printHelp()
		return 2
	}
	if *allFlag && *pagesFlag != "" {
		fmt.Fprintln(os.Stderr, "错误: -all 与 -pages 不能同时使用")
		return 2
	}
	if *retryFromFlag != "" && *retryFailedFlag {
		fmt.Fprintln(os.Stderr, "错误: -retry-from 与 -retry-failed 不能同时使用")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	if *configFlag != "" {
		var err error
		if app, err = NewAppWithConfig(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
			return 1
		}
	}
	if *listFlag {
		return runList(app)
	}
	if err := app.startup(ctx, applyFlags); err != nil {
		fmt.Fprintf(os.Stderr, "错误: 配置无效: %v\n", err)
		return 1
	}
	defer app.shutdown()

	if *saveConfigFlag {
		if err := app.GetConfig().Save(); err != nil {
			fmt.Fprintf(os.Stderr, "错误: 保存配置失败: %v\n", err)
			return 1
		}
		fmt.Printf("配置已保存: %s\n", app.GetConfig().GetConfigPath())
	}

	return runTranslate(ctx, app)
}

func runTranslate(ctx context.Context, app *App) int {
	cfg := app.GetConfig().GetConfig()
	fmt.Println("=== PDF 翻译 ===")
	fmt.Printf("输入文件: %s\n", *inputFlag)
	fmt.Printf("翻译后端: %s  (%s -> %s)\n", app.backend.Name(), cfg.SourceLang, cfg.TargetLang)

	opts := RunOptions{
		Input:       *inputFlag,
		Pages:       *pagesFlag,
		RetryFrom:   *retryFromFlag,
		RetryFailed: *retryFailedFlag,
		Excel:       *excelFlag,
		Progress: func(done, total int, r results.PageResult) {
			mark := "ok"
			if !r.Succeeded() {
				mark = "FAILED: " + r.Error
			}
			fmt.Printf("  [%d/%d] 第 %d 页 %s %s\n", done, total, r.PageNumber, r.ContentType, mark)
		},
	}

	result, err := app.TranslatePDF(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 翻译失败: %v\n", err)
		return 1
	}

	s := result.Session
	fmt.Println()
	fmt.Println("=== 翻译完成 ===")
	if result.Interrupted {
		fmt.Println("(已中断, 仅保存已完成的页面)")
	}
	fmt.Printf("总页数: %d\n", result.Info.PageCount)
	fmt.Printf("处理页数: %d\n", s.TotalPages)
	fmt.Printf("成功: %d  失败: %d  成功率: %.1f%%\n", s.SuccessfulCount, s.FailedCount(), s.SuccessRate())
	if failed := s.FailedPages(); len(failed) > 0 {
		fmt.Printf("失败页: %v\n", failed)
		for _, line := range app.failureDetails(result.Document, failed) {
			fmt.Println("  " + line)
		}
	}
	fmt.Printf("JSON: %s\n", result.Files.JSON)
	fmt.Printf("CSV:  %s\n", result.Files.CSV)
	if result.Files.Excel != "" {
		fmt.Printf("Excel: %s\n", result.Files.Excel)
	}

	if result.Interrupted {
		return 130
	}
	return 0
}

func runList(app *App) int {
	if err := app.openOutputs(applyFlags); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	sessions, err := app.results.ListSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	fmt.Printf("输出目录: %s\n", app.results.GetBaseDir())
	if len(sessions) == 0 {
		fmt.Println("没有翻译结果")
	}
	for _, si := range sessions {
		fmt.Printf("  %s  %s  %d/%d 成功  (%s)\n", si.Timestamp, si.Source, si.SuccessfulCount, si.TotalPages, si.Path)
	}

	if failures := app.describeFailures(); len(failures) > 0 {
		fmt.Println()
		fmt.Println("失败记录:")
		for _, line := range failures {
			fmt.Println("  " + line)
		}
	}
	return 0
}
