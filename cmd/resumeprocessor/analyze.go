package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resume-analyzer/internal/bootstrap"
	"resume-analyzer/internal/config"
	"resume-analyzer/internal/processor"
	"resume-analyzer/internal/storage"

	"github.com/spf13/pflag"
)

var (
	jobFile    = pflag.String("jd", "", "岗位描述文本文件 (match 命令必填)")
	outputJSON = pflag.String("output", "", "输出结果到JSON文件")
	useRedis   = pflag.Bool("redis", false, "使用配置中的Redis缓存，默认只用进程内缓存")
)

const commandTimeout = 3 * time.Minute

// 处理结构化解析命令，jobDescription 非空时继续匹配
func handleAnalyzeCommand(cfg *config.Config, jobDescription string) {
	data := readPDF(*pdfFilePath)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	st := newCommandStorage(ctx, cfg)
	defer st.Close()

	svc := bootstrap.NewResumeService(ctx, cfg, st)
	defer svc.Wait()

	startTime := time.Now()
	analyzed, err := svc.Analyze(ctx, filepath.Base(*pdfFilePath), data)
	if err != nil {
		fmt.Printf("解析失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("解析完成 (%s)! 耗时: %v\n", analyzed.Message, time.Since(startTime))

	var result any = analyzed
	if jobDescription != "" {
		matched, err := svc.Match(ctx, analyzed.ResumeID, jobDescription)
		if err != nil {
			fmt.Printf("匹配失败: %v\n", err)
			os.Exit(1)
		}
		result = map[string]any{"analyze": analyzed, "match": matched}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("序列化结果失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(truncateForDisplay(string(out)))

	if *outputJSON != "" {
		if err := os.WriteFile(*outputJSON, out, 0o644); err != nil {
			fmt.Printf("保存结果失败: %v\n", err)
		} else {
			fmt.Printf("结果已保存到: %s\n", *outputJSON)
		}
	}
}

func handleMatchCommand(cfg *config.Config) {
	if *jobFile == "" {
		fmt.Println("错误: match 命令需要 --jd 参数")
		os.Exit(1)
	}
	jd, err := os.ReadFile(*jobFile)
	if err != nil {
		fmt.Printf("读取岗位描述失败: %v\n", err)
		os.Exit(1)
	}
	if len(jd) == 0 {
		fmt.Printf("岗位描述为空: %v\n", processor.ErrInvalidInput)
		os.Exit(1)
	}
	handleAnalyzeCommand(cfg, string(jd))
}

// newCommandStorage 命令行默认不连接外部服务
func newCommandStorage(ctx context.Context, cfg *config.Config) *storage.Storage {
	if *useRedis {
		st, err := storage.NewStorage(ctx, cfg)
		if err != nil {
			fmt.Printf("初始化存储失败: %v\n", err)
			os.Exit(1)
		}
		return st
	}
	return &storage.Storage{Cache: storage.NewResultCache(ctx, nil, storage.WithTTL(cfg.Cache.TTL))}
}
