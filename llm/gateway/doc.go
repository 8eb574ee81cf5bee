// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package gateway 提供多模态生成网关（api.thucchien.ai）的 HTTP 客户端。

网关同时暴露两类路由：

  - OpenAI 兼容路由（/chat/completions、/images/generations、/audio/speech、/key/info），
    使用 Authorization: Bearer <key> 认证；
  - Gemini 路由（/gemini/v1beta/...），使用 x-goog-api-key: <key> 认证。

Client 负责拼接 URL、设置认证头、编码 JSON 请求体，并把非 2xx 响应
映射为 types.Error。上层的 image、speech、video 包都基于它实现。

API Key 在构造时注入，客户端不读取任何全局状态。
*/
package gateway
