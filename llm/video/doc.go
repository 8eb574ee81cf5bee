// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package video 提供异步视频生成，基于 longrun 的 submit → poll → fetch 协议。

# 后端

  - VeoBackend：网关的 Gemini 长任务接口。
    提交 POST /gemini/v1beta/models/{model}:predictLongRunning 返回 operation name；
    轮询 GET /gemini/v1beta/{name}，结果定位符位于
    response.generateVideoResponse.generatedSamples[0].video.uri；
    下载时从定位符中取出文件 ID，改写为
    GET /gemini/download/v1beta/files/{id}:download?alt=media。
  - RunwayBackend：Runway 任务接口（POST /v1/image_to_video、GET /v1/tasks/{id}），
    SUCCEEDED 时 output[0] 即下载地址。

# 新闻视频

NewsVideo 依次生成主播图片、口播稿、配音，再以主播图片为首帧生成视频。
视频不含音轨。

# 使用

	backend := video.NewVeoBackend(client, video.DefaultVeoConfig())
	gen := video.NewGenerator(backend, poller, logger)
	res, err := gen.Generate(ctx, &video.GenerateRequest{Prompt: "..."})
	if errors.Is(err, longrun.ErrTimeout) { ... }
*/
package video
