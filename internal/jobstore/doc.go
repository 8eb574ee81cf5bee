// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 jobstore 持久化 HTTP 接口发起的视频任务记录。

每条 VideoJob 记录保存远程句柄、当前状态、轮询次数、耗时与
产物路径。服务重启后 Pending 返回仍处于非终态且已有句柄的任务，
由 API 层调用 video.Generator.Resume 继续等待。
*/
package jobstore
