// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 content 提供旅游内容 JSON 的读取、热重载与图片内联。

# 概述

Store 在启动时读取 content.json 并原样保存字节；About、Attractions、
Featured、Gallery 通过 gjson 直接切出对应片段返回，字段顺序与
非 ASCII 字符保持不变。文件缺失或不是合法 JSON 时记录错误并返回 {}。

Watcher 轮询文件修改时间，变化后经过防抖调用 Store.Reload。

EmbedImages 把 sections[].imageUrl、attractions[].imageUrl 与
gallery[].url 指向的本地图片改写为 data URI（sjson 原位修改），
并以两空格缩进写回文件。
*/
package content
