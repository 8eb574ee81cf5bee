// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 longrun 实现远程长任务（long-running operation）的三阶段协议：
提交（submit）→ 轮询（poll）→ 取回结果（fetch）。

# 概述

视频生成等接口不会同步返回结果，而是返回一个任务句柄（Handle）。调用方需要
按退避间隔反复查询状态，直到任务完成后再通过结果定位符（Locator）下载产物。
本包把这套流程抽象为与服务商无关的 Poller，具体的 HTTP 细节由 Job / Tracker
实现提供（见 llm/video 的 Veo 与 Runway 实现）。

# 状态机

	SUBMITTED → POLLING → {COMPLETED, TIMED_OUT, FAILED, CANCELED}

  - 提交失败返回 ErrSubmission，不会进行任何轮询。
  - 轮询失败返回 ErrQuery；done=true 但缺少定位符视为"尚不可取回"，继续轮询。
  - 取回失败返回 ErrFetch。
  - 超出 MaxWait 预算返回 ErrTimeout，不返回部分结果。
  - 服务端显式报告失败返回 ErrFailed。
  - context 取消返回包装了 ctx.Err() 的错误，状态为 CANCELED。

# 退避

初始间隔默认 10s，每次未完成的轮询后乘以 1.2，封顶 30s；睡眠时间不会超过剩余预算。

# 观察者

Observer 接口替代控制台打印，调用方可以接入日志（LogObserver）、指标或
WebSocket 推送；Observers 用于扇出到多个观察者。
*/
package longrun
