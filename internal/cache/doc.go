// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存管理与提交幂等能力。

# 概述

Manager 封装 go-redis 客户端，负责连接生命周期管理（初始化、
后台 ping 与优雅关闭），对外只暴露幂等占位需要的 Claim、Get、Delete。

IdempotencyStore 用于视频任务提交：同一个 Idempotency-Key 在 TTL 内
只会创建一个远程任务（远程提交本身不幂等）。提供 Redis 实现
（RedisIdempotency，通过 Lua 脚本原子占位）与进程内实现（MemoryIdempotency），
未配置 Redis 时使用后者。
*/
package cache
