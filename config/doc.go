// Package config 提供 thucchien 的配置管理功能。
//
// 配置优先级为 默认值 → YAML 文件 → .env 文件 → 环境变量（THUCCHIEN_ 前缀）。
// 各子系统的配置结构定义在各自的包里（gateway、video、cache、database 等），
// 这里负责把它们组合成一棵树并统一校验。
package config
