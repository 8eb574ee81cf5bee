// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 thucchien 命令行与服务端入口。

# 概述

cmd/thucchien 基于 cobra 组织子命令：serve 启动内容与视频任务 HTTP 服务，
其余子命令直接调用网关完成一次性生成任务（视频、图片、语音、文本）、
额度查询和 content.json 内嵌图片。

# 核心类型

  - Server：主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 配置：--config 指定 YAML，--env-file 指定 .env，THUCCHIEN_ 前缀环境变量覆盖
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、会话；生成类路由按 IP 限流
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 停止视频任务 → 关闭缓存与数据库
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
