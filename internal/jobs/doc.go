// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package jobs 管理 HTTP 接口发起的后台视频任务。

# 概述

Manager 为每个任务启动一个 goroutine，运行 video.Generator 的
submit → poll → fetch 流程，并把进度写入 jobstore、广播到 Hub。
服务关闭时取消所有任务并等待退出；已拿到句柄的任务保持未完成状态，
下次启动时由 ResumePending 继续轮询。

# 核心类型

  - Manager：任务提交、查询、恢复与关闭
  - Hub：按任务 ID 分发进度事件，供 websocket 订阅
  - Event：单条进度事件

# 幂等

提交时携带的 Idempotency-Key 按用户作用域哈希后写入
cache.IdempotencyStore，重复提交直接返回已有任务记录。
*/
package jobs
