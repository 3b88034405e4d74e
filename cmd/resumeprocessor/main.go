package main

import (
	"fmt"
	"os"

	"resume-analyzer/internal/config"
	appLogger "resume-analyzer/internal/logger"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	pdfFilePath = pflag.StringP("pdf", "p", "", "PDF简历文件路径 (必填)")
	configPath  = pflag.StringP("config", "c", "config.yaml", "配置文件路径")
	maxLen      = pflag.Int("maxlen", 1000, "显示的文本最大长度，设为-1显示全部")
	command     = pflag.String("cmd", "extract", "执行的命令: extract=仅提取文本, analyze=结构化解析, match=解析后与JD匹配")
)

func main() {
	pflag.Parse()

	if *pdfFilePath == "" {
		fmt.Println("错误: 必须提供PDF文件路径。使用 --pdf 参数。")
		pflag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	// 命令行工具只输出警告以上的日志
	appLogger.Init(appLogger.Config{Level: "warn", Format: "pretty", TimeFormat: "15:04:05"})

	switch *command {
	case "extract":
		handleExtractCommand(cfg)
	case "analyze":
		handleAnalyzeCommand(cfg, "")
	case "match":
		handleMatchCommand(cfg)
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: extract, analyze, match\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
}

// truncateForDisplay 按 --maxlen 截断，按字符计算
func truncateForDisplay(text string) string {
	runes := []rune(text)
	if *maxLen < 0 || len(runes) <= *maxLen {
		return text
	}
	return string(runes[:*maxLen]) + "...(已截断，使用 --maxlen 参数显示更多)"
}
