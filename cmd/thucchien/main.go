// =============================================================================
// thucchien 主入口
// =============================================================================
// 使用方法:
//
//	thucchien serve                          # 启动服务
//	thucchien serve --config config.yaml     # 指定配置文件
//	thucchien video "a dragon over Ha Long"  # 生成视频并等待结果
//	thucchien image "Hoi An lanterns" -n 2   # 生成图片
//	thucchien tts "Xin chào" -o hello.mp3    # 文本转语音
//	thucchien spend                          # 查询网关额度
//	thucchien embed-images content.json      # 将图片内嵌为 data URI
//	thucchien health                         # 健康检查
// =============================================================================

// @title thucchien API
// @version 1.0.0
// @description 旅游内容服务与生成式 AI 网关客户端。
// @description
// @description ## Features
// @description - 内容 JSON 路由（/api/content、/api/about、/api/attractions、/api/gallery）
// @description - 异步视频任务：提交、轮询、下载，websocket 进度推送
// @description - Idempotency-Key 防重复提交

// @contact.name thucchien Team
// @contact.url https://github.com/BaSui01/thucchien

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	// Ctrl-C 取消正在等待的生成任务
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
