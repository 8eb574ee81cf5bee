// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 speech 基于网关客户端提供文本转语音（TTS）能力。

  - Synthesize：POST /audio/speech，OpenAI 兼容，返回原始音频字节。
  - SynthesizeGemini：POST /gemini/v1beta/models/{model}:generateContent，
    responseModalities=["AUDIO"]，支持单人（voiceConfig，默认 Kore）与
    多人（multiSpeakerVoiceConfig）配置，响应中的 base64 音频解码后返回。
*/
package speech
