// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 HTTP 服务器生命周期：非阻塞启动、优雅关闭与信号监听。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供 Start、
    Shutdown、Wait 等方法；OnShutdown 注册的钩子在连接排空后
    依次执行（例如停止后台视频任务），各钩子的错误经 go-multierror
    合并后由 Shutdown 返回。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与
    优雅关闭超时。

API 服务与 /metrics 服务各用一个 Manager。
*/
package server
