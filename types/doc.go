// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 thucchien 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、api、internal 等上层模块
提供统一的错误码与 context 传播契约。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - 网关错误码与异步任务错误码（JOB_SUBMISSION、JOB_TIMEOUT 等）

# 主要能力

  - Context 传播：WithRequestID / WithUserID / WithJobID
  - 错误工具链：AsError / GetErrorCode / IsRetryable；errors.Is 按错误码匹配
*/
package types
