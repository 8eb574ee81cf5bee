// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 基于网关客户端提供图像生成能力。

# 主要能力

  - Generate：POST /images/generations（imagen-4），prompt 末尾追加 1–10000 的随机数
    以绕过网关缓存，返回 data:image/png;base64,... 形式的 data URL。
  - GenerateChat：通过 /chat/completions 的 modalities=["image"] 生成图片，
    可携带历史消息保持人物一致。
  - ConsistentCharacters / Comic：把人物描述拼接到每个场景 prompt 中，生成
    人物一致的系列图和漫画（封面 + 分镜）。
  - TextBackground / Merge：先生成留白背景，再用 Gemini generateContent
    把文字图合成到背景上（用于越南语等易出现字形错误的文字）。
  - GenerateMissing：批量生成目录中缺失的图片，已存在的文件跳过。
  - DecodeDataURL / Save：data URL 与文件之间的转换。
*/
package image
