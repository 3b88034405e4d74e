package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resume-analyzer/internal/bootstrap"
	"resume-analyzer/internal/config"
	"resume-analyzer/internal/processor"

	"github.com/spf13/pflag"
)

// 定义提取命令的命令行参数
var (
	extractSaveFile = pflag.String("extract-save", "", "保存提取内容到文件")
	extractPagesDir = pflag.String("extract-pages", "", "图片型PDF时把渲染的页面PNG保存到该目录")
)

// 处理提取文本命令
func handleExtractCommand(cfg *config.Config) {
	data := readPDF(*pdfFilePath)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Extractor.Timeout+5*time.Second)
	defer cancel()

	extractor := bootstrap.NewExtractor(ctx, cfg)

	fmt.Println("开始从PDF提取文本...")
	startTime := time.Now()
	text := extractor.ExtractText(ctx, data)
	fmt.Printf("提取完成! 耗时: %v\n", time.Since(startTime))
	fmt.Printf("简历ID: %s\n", processor.Fingerprint(data))

	if text == "" {
		imageBased := extractor.IsImageBased(ctx, data)
		fmt.Printf("没有可提取的文本，图片型文档: %v\n", imageBased)
		if imageBased && *extractPagesDir != "" {
			savePages(extractor.RenderPages(ctx, data, cfg.Extractor.DPI), *extractPagesDir)
		}
		return
	}

	fmt.Printf("\n===== 提取的文本 (总计 %d 字符) =====\n", len([]rune(text)))
	fmt.Println(truncateForDisplay(text))

	if *extractSaveFile != "" {
		if err := os.WriteFile(*extractSaveFile, []byte(text), 0o644); err != nil {
			fmt.Printf("保存到文件失败: %v\n", err)
		} else {
			fmt.Printf("文本已保存到: %s\n", *extractSaveFile)
		}
	}
}

func savePages(pages [][]byte, dir string) {
	if len(pages) == 0 {
		fmt.Println("页面渲染失败")
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Printf("创建目录失败: %v\n", err)
		return
	}
	for i, png := range pages {
		path := filepath.Join(dir, fmt.Sprintf("page_%d.png", i+1))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			fmt.Printf("保存页面失败 %s: %v\n", path, err)
			continue
		}
		fmt.Printf("页面已保存到: %s\n", path)
	}
}

func readPDF(path string) []byte {
	absPath, err := filepath.Abs(path)
	if err != nil {
		fmt.Printf("无法获取文件的绝对路径: %v\n", err)
		os.Exit(1)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		fmt.Printf("无法读取文件 %s: %v\n", absPath, err)
		os.Exit(1)
	}
	fmt.Printf("准备处理PDF文件: %s (%d 字节)\n", absPath, len(data))
	return data
}
