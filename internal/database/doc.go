// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库接入与连接池管理。

# 概述

Open 根据 Config.Driver 选择方言（sqlite 使用纯 Go 的 glebarez/sqlite，
另支持 postgres 与 mysql），随后交给 PoolManager 统一管理连接生命周期。
视频任务记录（internal/jobstore）通过这里拿到 *gorm.DB。

# 核心类型

  - Config：驱动、DSN 与连接池配置。
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close()；后台健康检查在 Close 后退出，并可通过
    StatsHook 上报连接数。
  - PoolConfig：最大空闲/打开连接数、生命周期与健康检查间隔。
  - PoolStats：连接池快照，/ready 的 info 字段输出。
*/
package database
