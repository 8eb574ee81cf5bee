// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、网关调用、视频任务与任务库连接四个维度。

# 概述

Collector 通过 promauto.With 注册到指定 Registerer（默认全局注册表），
所有指标带 namespace 前缀；测试使用独立的 prometheus.Registry。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 网关指标：上游调用总数与耗时，按 endpoint/status 分组。
  - 任务指标：提交数、轮询次数、终态计数、端到端耗时、进行中任务数，
    按 backend/state 分组；JobObserver 把 longrun 事件转换为指标。
  - 数据库指标：按 driver/state 分组的连接数 Gauge（open、idle）。
*/
package metrics
