// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 thucchien HTTP API 的请求处理器实现。

# 概述

handlers 包实现了站点内容、后台视频任务以及健康检查端点，
所有 Handler 均遵循标准 net/http 接口，并通过 Register 挂到
Go 1.22 的方法 + 路径模式路由上。

# 核心类型

  - ContentHandler：原样返回 content.json 中的各段（/api/content、/api/about 等）
  - VideoHandler：视频任务创建、查询、下载与 websocket 进度流
  - HealthHandler：服务健康检查（/health, /healthz, /ready, /version）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo：结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码与字节数

# 主要能力

  - 统一响应格式：WriteSuccess / WriteEnvelope / WriteError / WriteRawJSON
  - 请求验证：DecodeJSONBody（大小限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码映射（StatusForCode），任务错误码映射到 409/502/504
  - /ready 并发执行依赖检查，非关键依赖失败时返回 degraded
  - Idempotency-Key 幂等提交，重放时返回 200 与 Idempotent-Replayed 头
*/
package handlers
